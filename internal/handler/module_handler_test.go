package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
	"github.com/noah-isme/hrd-training-api/internal/service"
)

type stubModuleReader struct {
	modules map[string]*models.Module
}

func (s *stubModuleReader) FindByID(ctx context.Context, id string) (*models.Module, error) {
	if m, ok := s.modules[id]; ok {
		return m, nil
	}
	return nil, mongo.ErrNoDocuments
}

func buildModuleRouter(t *testing.T) (*gin.Engine, string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	start := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	first := &models.Module{
		ID:   primitive.NewObjectID(),
		Name: "Go Fundamentals",
		Sessions: []models.Session{{
			Name:  "week one",
			Dates: []models.DateRange{{Start: start, End: start.AddDate(0, 0, 2)}},
		}},
	}
	second := &models.Module{
		ID:   primitive.NewObjectID(),
		Name: "Kubernetes Basics",
		Sessions: []models.Session{{
			Name:  "week one",
			Dates: []models.DateRange{{Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 3)}},
		}},
	}

	reader := &stubModuleReader{modules: map[string]*models.Module{
		first.ID.Hex():  first,
		second.ID.Hex(): second,
	}}
	cacheSvc := service.NewCacheService(nil, nil, 0, zap.NewNop(), false)
	scheduleSvc := service.NewScheduleService(cacheSvc, zap.NewNop())
	moduleSvc := service.NewModuleService(reader, scheduleSvc, zap.NewNop())
	h := NewModuleHandler(moduleSvc, nil)

	router := gin.New()
	router.GET("/modules/:id/schedule", h.Schedule)
	router.GET("/modules/:id/conflicts/:otherId", h.Conflicts)
	return router, first.ID.Hex(), second.ID.Hex()
}

func TestModuleHandlerSchedule(t *testing.T) {
	router, firstID, _ := buildModuleRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/modules/"+firstID+"/schedule", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"count":3`)
}

func TestModuleHandlerScheduleNotFound(t *testing.T) {
	router, _, _ := buildModuleRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/modules/"+primitive.NewObjectID().Hex()+"/schedule", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Contains(t, resp.Body.String(), "NOT_FOUND")
}

func TestModuleHandlerConflicts(t *testing.T) {
	router, firstID, secondID := buildModuleRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/modules/"+firstID+"/conflicts/"+secondID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"conflict":true`)
}
