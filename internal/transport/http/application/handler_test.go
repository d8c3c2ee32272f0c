package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/dbtest"
	"github.com/ustabul/ustabul/internal/entity"
	"github.com/ustabul/ustabul/internal/presentation/http/request"
	apprepo "github.com/ustabul/ustabul/internal/repository/application"
	masterrepo "github.com/ustabul/ustabul/internal/repository/master"
	orderrepo "github.com/ustabul/ustabul/internal/repository/order"
	statsrepo "github.com/ustabul/ustabul/internal/repository/stats"
	applicationsvc "github.com/ustabul/ustabul/internal/service/application"
	transport "github.com/ustabul/ustabul/internal/transport/http/application"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   *struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newServer(t *testing.T) (*echo.Echo, *database.Connections) {
	t.Helper()
	conns := dbtest.New(t)
	svc := applicationsvc.NewService(applicationsvc.Params{
		Applications: apprepo.NewRepository(conns),
		Orders:       orderrepo.NewRepository(conns),
		Masters:      masterrepo.NewRepository(conns),
		Stats:        statsrepo.NewRepository(conns),
		Config:       config.Config{},
		Logger:       zap.NewNop(),
	})
	e := echo.New()
	transport.Register(e, transport.NewHandler(svc))
	return e, conns
}

func seedMaster(t *testing.T, conns *database.Connections, id int64, name string) {
	t.Helper()
	master := &entity.Master{
		ID:         id,
		Name:       name,
		AvatarURL:  fmt.Sprintf("https://cdn.ustabul.az/avatars/%d.png", id),
		CategoryID: 1,
		Verified:   true,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := conns.Writer.NewInsert().Model(master).Exec(context.Background())
	require.NoError(t, err)
}

func seedPendingOrder(t *testing.T, conns *database.Connections, number string, customerID int64) *entity.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &entity.Order{
		Number:         number,
		CustomerID:     customerID,
		CategoryID:     1,
		Title:          "fix the sink",
		District:       "Yasamal",
		ScheduledAt:    now.Add(24 * time.Hour),
		Urgency:        entity.UrgencyPlanned,
		EstimatedPrice: decimal.NewFromInt(500),
		Status:         entity.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := conns.Writer.NewInsert().Model(order).Exec(context.Background())
	require.NoError(t, err)
	return order
}

func do(e *echo.Echo, method, path, actor, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if actor != "" {
		req.Header.Set(request.ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSubmitEndpoint(t *testing.T) {
	e, conns := newServer(t)
	seedMaster(t, conns, 1, "Ahmet Usta")
	order := seedPendingOrder(t, conns, "UB-HTTP0001", 10)

	body := fmt.Sprintf(`{"order_id": %d, "price": "400", "message": "can start tomorrow"}`, order.ID)
	rec := do(e, http.MethodPost, "/applications", "1", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decode(t, rec)
	require.True(t, env.Success)

	var data struct {
		ID       int64  `json:"id"`
		OrderID  int64  `json:"order_id"`
		MasterID int64  `json:"master_id"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, order.ID, data.OrderID)
	require.Equal(t, int64(1), data.MasterID)
	require.Equal(t, "pending", data.Status)

	// A second submit from the same master renders the conflict envelope.
	rec = do(e, http.MethodPost, "/applications", "1", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	env = decode(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "conflict", env.Error.Kind)
	require.Equal(t, "duplicate_application", env.Error.Details["reason"])
}

func TestSubmitRequiresActorHeader(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodPost, "/applications", "", `{"order_id": 1, "price": "400"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "bad_request", env.Error.Kind)
}

func TestDecideEndpoint(t *testing.T) {
	e, conns := newServer(t)
	seedMaster(t, conns, 1, "Ahmet Usta")
	seedMaster(t, conns, 2, "Mehmet Usta")
	order := seedPendingOrder(t, conns, "UB-HTTP0002", 10)

	rec := do(e, http.MethodPost, "/applications", "1", fmt.Sprintf(`{"order_id": %d, "price": "400"}`, order.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var first struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &first))

	rec = do(e, http.MethodPost, "/applications", "2", fmt.Sprintf(`{"order_id": %d, "price": "450"}`, order.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var second struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &second))

	// Only the owning customer may accept.
	rec = do(e, http.MethodPatch, fmt.Sprintf("/applications/%d", first.ID), "55", `{"status": "accepted"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPatch, fmt.Sprintf("/applications/%d", first.ID), "10", `{"status": "accepted"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.True(t, env.Success)

	var accepted struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.Equal(t, "accepted", accepted.Status)

	// The losing bid is already rejected, so deciding on it conflicts.
	rec = do(e, http.MethodPatch, fmt.Sprintf("/applications/%d", second.ID), "10", `{"status": "rejected", "rejected_reason": "late"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestListForOrderEndpoint(t *testing.T) {
	e, conns := newServer(t)
	seedMaster(t, conns, 1, "Ahmet Usta")
	order := seedPendingOrder(t, conns, "UB-HTTP0003", 10)

	rec := do(e, http.MethodPost, "/applications", "1", fmt.Sprintf(`{"order_id": %d, "price": "400"}`, order.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodGet, fmt.Sprintf("/applications?order_id=%d", order.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.True(t, env.Success)
	require.EqualValues(t, 1, env.Meta["count"])

	var rows []struct {
		Master *struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			AvatarURL string `json:"avatar_url"`
			Verified  bool   `json:"verified"`
		} `json:"master"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Master)
	require.Equal(t, "Ahmet Usta", rows[0].Master.Name)
	require.Equal(t, "https://cdn.ustabul.az/avatars/1.png", rows[0].Master.AvatarURL)
	require.True(t, rows[0].Master.Verified)

	rec = do(e, http.MethodGet, "/applications", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawEndpoint(t *testing.T) {
	e, conns := newServer(t)
	seedMaster(t, conns, 1, "Ahmet Usta")
	order := seedPendingOrder(t, conns, "UB-HTTP0004", 10)

	rec := do(e, http.MethodPost, "/applications", "1", fmt.Sprintf(`{"order_id": %d, "price": "400"}`, order.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))

	rec = do(e, http.MethodPost, fmt.Sprintf("/applications/%d/withdraw", created.ID), "2", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPost, fmt.Sprintf("/applications/%d/withdraw", created.ID), "1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var withdrawn struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &withdrawn))
	require.Equal(t, "withdrawn", withdrawn.Status)
}
