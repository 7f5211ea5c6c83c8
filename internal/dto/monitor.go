package dto

import (
	"fmt"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/projection"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

// Command types accepted by the commands endpoint.
const (
	CommandSetEstimate         = "set_estimate"
	CommandSetIncluded         = "set_included"
	CommandSetGoal             = "set_goal"
	CommandSetShowAverage      = "set_show_average"
	CommandDismissSchemeNotice = "dismiss_scheme_notice"
)

// OpenSessionRequest opens a monitor session for a student in a course.
type OpenSessionRequest struct {
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	CourseID  int64  `json:"courseId" validate:"required,gt=0"`
	ContextID int64  `json:"contextId" validate:"gte=0"`
	Locale    string `json:"locale" validate:"omitempty,max=35"`
}

// Scope converts the request into a monitor scope.
func (r OpenSessionRequest) Scope() models.MonitorScope {
	return models.MonitorScope{UserID: r.UserID, CourseID: r.CourseID, ContextID: r.ContextID, Locale: r.Locale}
}

// CommandRequest is one edit. Which fields are required depends on Type.
type CommandRequest struct {
	Type     string   `json:"type" validate:"required,oneof=set_estimate set_included set_goal set_show_average dismiss_scheme_notice"`
	Index    *int     `json:"index,omitempty" validate:"omitempty,gte=0"`
	Percent  *float64 `json:"percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Included *bool    `json:"included,omitempty"`
	Grade    *int     `json:"grade,omitempty" validate:"omitempty,gte=0,lte=4"`
	Show     *bool    `json:"show,omitempty"`
}

// ToCommand builds the projection command, checking the fields its type needs.
func (r CommandRequest) ToCommand() (projection.Command, error) {
	switch r.Type {
	case CommandSetEstimate:
		if r.Index == nil || r.Percent == nil {
			return nil, missing(r.Type, "index and percent")
		}
		return projection.SetEstimate{Index: *r.Index, Percent: *r.Percent}, nil
	case CommandSetIncluded:
		if r.Index == nil || r.Included == nil {
			return nil, missing(r.Type, "index and included")
		}
		return projection.SetIncluded{Index: *r.Index, Included: *r.Included}, nil
	case CommandSetGoal:
		if r.Grade == nil {
			return nil, missing(r.Type, "grade")
		}
		return projection.SetGoal{Grade: *r.Grade}, nil
	case CommandSetShowAverage:
		if r.Show == nil {
			return nil, missing(r.Type, "show")
		}
		return projection.SetShowAverage{Show: *r.Show}, nil
	case CommandDismissSchemeNotice:
		return projection.DismissSchemeNotice{}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown command type %q", r.Type))
	}
}

func missing(commandType, fields string) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s requires %s", commandType, fields))
}
