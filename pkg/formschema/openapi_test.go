package formschema

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const invoiceSpec = `
openapi: 3.0.3
info:
  title: Invoices
  version: "1.0"
paths:
  /invoices:
    post:
      operationId: createInvoice
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [tutar1]
              properties:
                tutar1:
                  type: number
                  title: First amount
                tutar2:
                  type: integer
                approved:
                  type: boolean
                dueDate:
                  type: string
                  format: date
                customer:
                  type: object
                  properties:
                    name:
                      type: string
                      x-component: Select
                tags:
                  type: array
                  items:
                    type: string
      responses:
        "201":
          description: created
`

func TestFromOpenAPI(t *testing.T) {
	t.Parallel()

	design, err := FromOpenAPI(context.Background(), []byte(invoiceSpec), "createInvoice")
	if err != nil {
		t.Fatalf("FromOpenAPI returned error: %v", err)
	}

	fields := Extract(design.Schema)
	want := []FormField{
		{Key: "approved", NormalizedKey: "approved", Label: "approved", Type: FieldTypeBoolean, Component: "Switch"},
		{Key: "customer.name", NormalizedKey: "name", Label: "name", Type: FieldTypeString, Component: "Select"},
		{Key: "dueDate", NormalizedKey: "dueDate", Label: "dueDate", Type: FieldTypeDate, Component: "DatePicker"},
		{Key: "tutar1", NormalizedKey: "tutar1", Label: "First amount", Type: FieldTypeNumber, Component: "NumberPicker", Required: true},
		{Key: "tutar2", NormalizedKey: "tutar2", Label: "tutar2", Type: FieldTypeNumber, Component: "NumberPicker"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFromOpenAPI_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, err := FromOpenAPI(ctx, []byte(invoiceSpec), "missing"); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
	if _, err := FromOpenAPI(ctx, []byte(invoiceSpec), " "); err == nil {
		t.Fatalf("expected error for empty operation id")
	}
	if _, err := FromOpenAPI(ctx, []byte("openapi: ["), "createInvoice"); !errors.Is(err, ErrSchemaMalformed) {
		t.Fatalf("expected ErrSchemaMalformed, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := FromOpenAPI(cancelled, []byte(invoiceSpec), "createInvoice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
