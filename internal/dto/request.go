package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"max=256"`
	Type        string `json:"type" binding:"required,oneof=Bug Feature Improvement"`
	Priority    string `json:"priority" binding:"required,oneof=Low Medium High"`
}

// UpdateTaskRequest fields are all optional; blank values are ignored.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	AssignedTo  *uint64 `json:"assigned_to"`
	DueDate     *string `json:"due_date"`
}

type AssignTaskRequest struct {
	UserID  uint64 `json:"user_id" binding:"required"`
	DueDate string `json:"due_date" binding:"required"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type TaskFilterQuery struct {
	Priority string `form:"priority" binding:"omitempty,oneof=Low Medium High"`
	Status   string `form:"status" binding:"omitempty,oneof=Open 'In Progress' Completed Blocked"`
}

// RegisterValidation makes validator errors report json field names.
func RegisterValidation() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// ValidationDetails turns a binding error into per-field messages.
func ValidationDetails(err error) map[string]string {
	details := map[string]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		return details
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		details[typeErr.Field] = fmt.Sprintf("must be of type %s", typeErr.Type)
		return details
	}

	details["body"] = err.Error()
	return details
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must not be greater than %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the %s rule", fe.Tag())
	}
}
