// controller/controllers_test.go
package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/controller"
	"github.com/hearthguard/sentinel/ingest"
	"github.com/hearthguard/sentinel/killswitch"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/risk"
	"github.com/hearthguard/sentinel/service"
	"github.com/hearthguard/sentinel/util"
)

func setupAPI(t *testing.T) (*gin.Engine, *service.Services, *pdp_store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := pdp_store.NewStore()
	services := service.NewServices(service.Config{
		Pipeline: ingest.Config{QueueSize: 64, Workers: 1, SubmitTimeout: 100 * time.Millisecond},
		Risk: risk.Config{
			BaseScores:         map[string]float64{"failed_authentication": 25},
			DefaultBaseScore:   15,
			RepeatPenalty:      5,
			DecayWindow:        10 * time.Minute,
			AutoBlockThreshold: 90,
			EscalateThreshold:  75,
		},
		CorrelationRules:  service.DefaultCorrelationRules(5, 10*time.Minute),
		OverrideWindow:    time.Hour,
		OverrideThreshold: 3,
	}, store, nil, audit.NewLog(), util.NewEventBus())

	ctx, cancel := context.WithCancel(context.Background())
	services.Start(ctx)
	t.Cleanup(func() {
		services.Stop()
		cancel()
	})

	router := gin.New()
	api := router.Group("/api/v1")
	controllers := controller.NewControllers(services)
	controllers.Access.RegisterRoutes(api)
	controllers.Event.RegisterRoutes(api)
	controllers.Incident.RegisterRoutes(api)
	controllers.Override.RegisterRoutes(api)
	controllers.KillSwitch.RegisterRoutes(api)
	controllers.Audit.RegisterRoutes(api)
	controllers.Dashboard.RegisterRoutes(api)
	controllers.Policy.RegisterRoutes(api)

	return router, services, store
}

func doJSON(router *gin.Engine, method, path, body, principal string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set("X-Principal-ID", principal)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAccessEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, store := setupAPI(t)

	_, err := store.PutPolicy(model.Policy{ID: "p1", Name: "allow-docs", Effect: model.EffectAllow, Resource: "docs.*", Action: "read", Priority: 1})
	require.NoError(t, err)

	t.Run("Evaluate_Allow", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/access/evaluate",
			`{"principal_id":"alice","resource":"docs.readme","action":"read"}`, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Decision model.AccessDecision `json:"decision"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, model.ResultAllow, resp.Decision.Result)
		assert.Equal(t, "p1", resp.Decision.MatchedPolicyID)
	})

	t.Run("Evaluate_DefaultDeny", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/access/evaluate",
			`{"principal_id":"alice","resource":"vault","action":"open"}`, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Decision model.AccessDecision `json:"decision"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, model.ResultDeny, resp.Decision.Result)
	})

	t.Run("Evaluate_MissingFields", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/access/evaluate", `{"resource":"docs"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEventEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	t.Run("Submit_Accepted", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/events",
			`{"source":"web-1","category":"failed_authentication","severity":"medium"}`, "")
		require.Equal(t, http.StatusAccepted, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["event_id"])
	})

	t.Run("Submit_Invalid", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/events",
			`{"source":"","category":"failed_authentication","severity":"medium"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GetEvent_NotFound", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/events/missing", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIncidentEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	var created model.Incident

	t.Run("Open", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/incidents",
			`{"title":"credential stuffing","severity":"high"}`, "analyst-1")
		require.Equal(t, http.StatusCreated, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, model.IncidentOpen, created.State)
	})

	t.Run("Open_Unauthorized", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/incidents", `{"title":"x","severity":"low"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Transition_StaleVersionConflicts", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/incidents/"+created.ID+"/transitions",
			`{"version":1,"to":"investigating"}`, "analyst-1")
		require.Equal(t, http.StatusOK, w.Code)

		// replay with the stale version
		w = doJSON(router, "POST", "/api/v1/incidents/"+created.ID+"/transitions",
			`{"version":1,"to":"investigating"}`, "analyst-1")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("List_FilterByState", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/incidents?state=investigating", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var incidents []model.Incident
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &incidents))
		assert.Len(t, incidents, 1)
	})
}

func TestOverrideEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	// create a deny decision to annotate
	w := doJSON(router, "POST", "/api/v1/access/evaluate",
		`{"principal_id":"alice","resource":"vault","action":"open"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Decision model.AccessDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	t.Run("Record", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/overrides",
			`{"decision_id":"`+resp.Decision.ID+`","reason":"false_positive","explanation":"stale device tag"}`, "analyst-1")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Record_UnknownDecision", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/overrides",
			`{"decision_id":"nope","reason":"false_positive","explanation":"x"}`, "analyst-1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Record_MissingExplanation", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/overrides",
			`{"decision_id":"`+resp.Decision.ID+`","reason":"false_positive"}`, "analyst-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestKillSwitchEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, services, _ := setupAPI(t)

	services.Registry.Register(killswitch.Target{
		Type:     model.TargetPlugin,
		ID:       "pdf-renderer",
		Sessions: []string{"s1"},
	})

	t.Run("Activate", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/killswitch",
			`{"target_type":"plugin","target_id":"pdf-renderer","reason":"sandbox escape"}`, "analyst-1")
		require.Equal(t, http.StatusOK, w.Code)

		var action model.KillSwitchAction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &action))
		assert.Equal(t, model.KillSwitchTerminated, action.State)
		assert.NotEmpty(t, action.RollbackInstructions)

		// repeat activation is idempotent
		w = doJSON(router, "POST", "/api/v1/killswitch",
			`{"target_type":"plugin","target_id":"pdf-renderer","reason":"again"}`, "analyst-1")
		require.Equal(t, http.StatusOK, w.Code)
		var repeat model.KillSwitchAction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &repeat))
		assert.Equal(t, action.ID, repeat.ID)
	})

	t.Run("Activate_UnknownTarget", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/killswitch",
			`{"target_type":"plugin","target_id":"ghost","reason":"test"}`, "analyst-1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Activate_InvalidType", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/killswitch",
			`{"target_type":"satellite","target_id":"x","reason":"test"}`, "analyst-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuditEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	// generate one decision so the log is non-empty
	doJSON(router, "POST", "/api/v1/access/evaluate",
		`{"principal_id":"alice","resource":"x","action":"y"}`, "")

	t.Run("Verify", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/audit/verify", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var result audit.VerifyResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Valid)
		assert.Equal(t, 1, result.Records)
	})

	t.Run("Export_FilterByPrincipal", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/audit/export?principal=alice", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var records []audit.Record
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		assert.Len(t, records, 1)
	})

	t.Run("Export_BadTimestamp", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/audit/export?start=yesterday", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPolicyEndpoints(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	t.Run("Create", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/policies",
			`{"name":"deny-prod-writes","effect":"deny","resource":"db.prod","action":"write","priority":10}`, "admin-1")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Create_Unauthorized", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/policies",
			`{"name":"x","effect":"deny","resource":"r","action":"a"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RoleCycle_Rejected", func(t *testing.T) {
		w := doJSON(router, "PUT", "/api/v1/roles/a", `{"name":"a"}`, "admin-1")
		require.Equal(t, http.StatusOK, w.Code)
		w = doJSON(router, "PUT", "/api/v1/roles/b", `{"name":"b","parents":["a"]}`, "admin-1")
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "PUT", "/api/v1/roles/a", `{"name":"a","parents":["b"]}`, "admin-1")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("GetPolicy_NotFound", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/policies/missing", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDashboardEndpoint(t *testing.T) {
	logger.InitTestLogger()
	router, _, _ := setupAPI(t)

	w := doJSON(router, "GET", "/api/v1/dashboard", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var dashboard service.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dashboard))
	assert.NotNil(t, dashboard.RiskDistribution)
	assert.NotZero(t, dashboard.SnapshotVersion)
}
