package taskconfig

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAssignment reports an assignment rule that cannot be saved.
var ErrInvalidAssignment = errors.New("taskconfig: invalid assignment")

// AssignmentType selects who receives the task.
type AssignmentType string

const (
	AssignDirectManager     AssignmentType = "direct_manager"
	AssignDepartmentManager AssignmentType = "department_manager"
	AssignDepartmentAll     AssignmentType = "department_all"
	AssignPosition          AssignmentType = "position"
	AssignManual            AssignmentType = "manual"
)

// DefaultAssignmentType applies to rules saved without a type or mode.
const DefaultAssignmentType = AssignDirectManager

// Valid reports whether t is a known type.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignDirectManager, AssignDepartmentManager, AssignDepartmentAll, AssignPosition, AssignManual:
		return true
	default:
		return false
	}
}

// SelectionMode is the legacy way of picking an assignee, used when a rule has
// no type.
type SelectionMode string

const (
	SelectManual       SelectionMode = "manual"
	SelectOrganization SelectionMode = "organization"
)

// AssignmentRule is the assignee configuration of a form-task.
type AssignmentRule struct {
	Type          AssignmentType `json:"assignmentType,omitempty" yaml:"assignmentType,omitempty"`
	SelectionMode SelectionMode  `json:"selectionMode,omitempty" yaml:"selectionMode,omitempty"`

	UserID           string `json:"userId,omitempty" yaml:"userId,omitempty"`
	UserName         string `json:"userName,omitempty" yaml:"userName,omitempty"`
	UserFirstName    string `json:"userFirstName,omitempty" yaml:"userFirstName,omitempty"`
	UserLastName     string `json:"userLastName,omitempty" yaml:"userLastName,omitempty"`
	AssignedUserName string `json:"assignedUserName,omitempty" yaml:"assignedUserName,omitempty"`

	OrgUnitID   string `json:"selectedOrgUnit,omitempty" yaml:"selectedOrgUnit,omitempty"`
	PositionID  string `json:"selectedPosition,omitempty" yaml:"selectedPosition,omitempty"`
	ManagerID   string `json:"selectedManagerId,omitempty" yaml:"selectedManagerId,omitempty"`
	ManagerName string `json:"selectedManagerName,omitempty" yaml:"selectedManagerName,omitempty"`
}

// Legacy reports whether the rule uses the selection-mode form.
func (r AssignmentRule) Legacy() bool {
	return r.Type == "" && r.SelectionMode != ""
}

// Normalize returns a copy holding only the selections the type uses, with
// AssignedUserName derived from the selected user.
func (r AssignmentRule) Normalize() AssignmentRule {
	if r.Type == "" && r.SelectionMode == "" {
		r.Type = DefaultAssignmentType
	}
	r.AssignedUserName = displayName(r.UserFirstName, r.UserLastName, r.UserName)
	if r.Legacy() {
		return r
	}

	out := AssignmentRule{Type: r.Type}
	switch r.Type {
	case AssignManual:
		out.UserID = r.UserID
		out.UserName = r.UserName
		out.UserFirstName = r.UserFirstName
		out.UserLastName = r.UserLastName
		out.AssignedUserName = r.AssignedUserName
	case AssignPosition:
		out.PositionID = r.PositionID
	case AssignDepartmentManager, AssignDepartmentAll:
		out.OrgUnitID = r.OrgUnitID
	}
	return out
}

// Validate applies the save checks to the normalized rule.
func (r AssignmentRule) Validate() error {
	r = r.Normalize()

	if r.Legacy() {
		switch r.SelectionMode {
		case SelectManual:
			if r.UserID == "" {
				return fmt.Errorf("%w: a user must be selected", ErrInvalidAssignment)
			}
		case SelectOrganization:
			if r.OrgUnitID == "" && r.PositionID == "" && r.ManagerID == "" && r.UserID == "" {
				return fmt.Errorf("%w: an org unit, position, manager or user must be selected", ErrInvalidAssignment)
			}
		default:
			return fmt.Errorf("%w: unknown selection mode %q", ErrInvalidAssignment, r.SelectionMode)
		}
		return nil
	}

	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown assignment type %q", ErrInvalidAssignment, r.Type)
	}
	switch r.Type {
	case AssignManual:
		if r.UserID == "" {
			return fmt.Errorf("%w: a user must be selected", ErrInvalidAssignment)
		}
	case AssignDepartmentAll:
		if r.OrgUnitID == "" {
			return fmt.Errorf("%w: a department must be selected", ErrInvalidAssignment)
		}
	}
	return nil
}

func displayName(first, last, fallback string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first != "" && last != "" {
		return first + " " + last
	}
	return strings.TrimSpace(fallback)
}
