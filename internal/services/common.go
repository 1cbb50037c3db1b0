package services

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/task-lifecycle-api/internal/constants"
	apierrors "github.com/yukikurage/task-lifecycle-api/internal/errors"
)

var statusTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "task_status_transitions_total",
		Help: "Count of task status changes by target status and path",
	},
	[]string{"status", "path"},
)

func init() { prometheus.MustRegister(statusTransitions) }

// Options carries the settings every service shares.
type Options struct {
	Location *time.Location
	CacheTTL time.Duration
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = constants.DefaultCacheTTL
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// fail converts err into an APIError, logging anything unexpected.
func fail(log *zap.Logger, op string, err error) error {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	log.Error(op+" failed", zap.Error(err))
	return apierrors.Internal("Failed to "+op, err)
}

// notFoundAs maps a missing record to kind and passes other errors through.
func notFoundAs(err error, kind *apierrors.APIError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kind
	}
	return err
}

// blank trims s and reports nil when nothing is left.
func blank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
