package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comaslimpio/notification-api/internal/apperror"
	"github.com/comaslimpio/notification-api/internal/proximity"
	"github.com/comaslimpio/notification-api/internal/worker"
	"github.com/comaslimpio/notification-api/pkg/geo"
)

type stubProcessor struct {
	err      error
	calls    int
	userID   string
	loc      *geo.Location
	deadline time.Time
}

func (p *stubProcessor) ProcessLocationUpdate(ctx context.Context, userID string, loc *geo.Location) (*proximity.Result, error) {
	p.calls++
	p.userID = userID
	p.loc = loc
	p.deadline, _ = ctx.Deadline()
	if p.err != nil {
		return nil, p.err
	}
	return &proximity.Result{Success: true, RouteID: "route-1", TotalCitizens: 3, NotificationsSent: 2}, nil
}

const validMessage = `{"userId":"driver-1","location":{"lat":-11.9498,"long":-77.0622}}`

func TestHandler_Handle(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		err       error
		want      worker.Decision
		wantCalls int
	}{
		{"processed", validMessage, nil, worker.Ack, 1},
		{"malformed json", `{"userId":`, nil, worker.Ack, 0},
		{"missing user", `{"location":{"lat":1,"long":1}}`, nil, worker.Ack, 0},
		{"missing location", `{"userId":"driver-1"}`, nil, worker.Ack, 0},
		{"missing longitude", `{"userId":"driver-1","location":{"lat":-11.9498}}`, nil, worker.Ack, 0},
		{"invalid coordinates", `{"userId":"driver-1","location":{"lat":100,"long":1}}`, nil, worker.Ack, 0},
		{"no active route", validMessage, apperror.NotFound(proximity.MsgNoActiveRoute), worker.Ack, 1},
		{"lookup failure", validMessage, apperror.Lookup("get truck", errors.New("unavailable")), worker.Nack, 1},
		{"internal failure", validMessage, errors.New("boom"), worker.Nack, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &stubProcessor{err: tt.err}
			h := worker.NewHandler(worker.HandlerConfig{Processor: processor, Logger: zerolog.Nop()})

			got := h.Handle(context.Background(), []byte(tt.body), zerolog.Nop())

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, processor.calls)
		})
	}
}

func TestHandler_PassesDecodedLocation(t *testing.T) {
	processor := &stubProcessor{}
	h := worker.NewHandler(worker.HandlerConfig{Processor: processor, Logger: zerolog.Nop()})

	h.Handle(context.Background(), []byte(validMessage), zerolog.Nop())

	assert.Equal(t, "driver-1", processor.userID)
	require.NotNil(t, processor.loc)
	assert.Equal(t, geo.Location{Lat: -11.9498, Long: -77.0622}, *processor.loc)
}

func TestHandler_AppliesTimeout(t *testing.T) {
	processor := &stubProcessor{}
	h := worker.NewHandler(worker.HandlerConfig{
		Processor: processor,
		Timeout:   5 * time.Second,
		Logger:    zerolog.Nop(),
	})

	before := time.Now()
	h.Handle(context.Background(), []byte(validMessage), zerolog.Nop())

	require.False(t, processor.deadline.IsZero())
	assert.WithinDuration(t, before.Add(5*time.Second), processor.deadline, time.Second)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
