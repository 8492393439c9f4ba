package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"inventorycounter/internal/config"
	"inventorycounter/internal/dto"
	"inventorycounter/internal/inventory"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/model"
	"inventorycounter/internal/service/pipeline"
	"inventorycounter/internal/session"
)

type stubCounter struct {
	stopped inventory.Action
}

func (c *stubCounter) Start() bool { return true }
func (c *stubCounter) Stop(ctx context.Context, action inventory.Action) (session.Outcome, error) {
	c.stopped = action
	return session.Outcome{Action: action, NothingDetected: true}, nil
}
func (c *stubCounter) View() pipeline.View { return pipeline.View{} }
func (c *stubCounter) Snapshot() *pipeline.Snapshot { return &pipeline.Snapshot{} }

type stubHub struct{}

func (stubHub) Register(*websocket.Conn) {}
func (stubHub) Unregister(*websocket.Conn) {}

type stubRepo struct{}

func (stubRepo) Load(context.Context) (map[string]int, error) { return nil, nil }
func (stubRepo) Save(context.Context, string, int) error { return nil }
func (stubRepo) GetAll(context.Context) ([]model.Item, error) { return nil, nil }
func (stubRepo) Get(context.Context, string) (*model.Item, error) { return nil, nil }
func (stubRepo) InsertBatch(context.Context, []model.Movement) error {
	return nil
}
func (stubRepo) GetRecent(context.Context, int) ([]model.Movement, error) { return nil, nil }
func (stubRepo) GetBySession(context.Context, string) ([]model.Movement, error) {
	return nil, nil
}

type stubEvidence struct{}

func (stubEvidence) Insert(context.Context, *model.Evidence) (int64, error) { return 0, nil }
func (stubEvidence) GetByID(context.Context, int64) (*model.Evidence, error) { return nil, nil }
func (stubEvidence) GetAll(context.Context, model.EvidenceFilter) ([]model.Evidence, error) {
	return nil, nil
}

func TestSetupRoutes(t *testing.T) {
	counter := &stubCounter{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router := SetupRoutes(config.Default(), logger.Discard(), Deps{
		Counter: counter,
		Hub:     stubHub{},
		Annotate: func(jpeg []byte, _ []dto.Detection, _ float64) ([]byte, error) {
			return jpeg, nil
		},
		LedgerRepo:   stubRepo{},
		MovementRepo: stubRepo{},
		EvidenceRepo: stubEvidence{},
		Metrics:      metrics,
	})

	tests := []struct {
		method   string
		path     string
		auth     bool
		expected int
	}{
		{http.MethodGet, "/api/session", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/session", true, http.StatusOK},
		{http.MethodPost, "/api/session/start", true, http.StatusOK},
		{http.MethodPost, "/api/session/stop?action=check-in", true, http.StatusOK},
		{http.MethodPost, "/api/session/stop?action=restock", true, http.StatusBadRequest},
		{http.MethodPost, "/api/session/checkout", true, http.StatusOK},
		{http.MethodGet, "/api/session/checkout", true, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/inventory", true, http.StatusOK},
		{http.MethodGet, "/api/inventory/box", true, http.StatusNotFound},
		{http.MethodGet, "/api/movements?limit=3", true, http.StatusOK},
		{http.MethodGet, "/api/frame", true, http.StatusNotFound},
		{http.MethodGet, "/api/evidence?session=s1", true, http.StatusOK},
		{http.MethodGet, "/api/evidence/7/image", true, http.StatusNotFound},
		{http.MethodGet, "/metrics", false, http.StatusOK},
		{http.MethodGet, "/login", false, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.auth {
			req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tt.expected {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.expected, rec.Code)
		}
	}

	if counter.stopped != inventory.CheckOut {
		t.Errorf("Expected checkout to stop with check-out, got %q", counter.stopped)
	}
}
