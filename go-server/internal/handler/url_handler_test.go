package handler

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fonsecaaso/linkkeep/go-server/internal/middleware"
	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
	"github.com/fonsecaaso/linkkeep/go-server/internal/repository"
	"github.com/fonsecaaso/linkkeep/go-server/internal/service"
)

var (
	alice = &model.User{ID: uuid.New(), Username: "alice", Email: "alice@x.com", IsActive: true}
	bob   = &model.User{ID: uuid.New(), Username: "bob", Email: "bob@x.com", IsActive: true}
)

func setupURLRouter(t *testing.T) (*gin.Engine, *MockURLService) {
	setupTest(t)

	urls := new(MockURLService)
	auth := new(MockAuthService)
	auth.On("Resolve", mock.Anything, "alice-token").Return(alice, nil)
	auth.On("Resolve", mock.Anything, "bob-token").Return(bob, nil)

	h := NewURLHandler(urls, "http://sho.rt/")
	requireAuth := middleware.AuthMiddleware(auth)

	router := gin.New()
	router.POST("/url", requireAuth, h.CreateURL)
	router.GET("/urls", requireAuth, h.ListURLs)
	router.GET("/url/:short_key", h.GetURLDetails)
	router.GET("/qr/:short_key", h.QRCode)
	router.GET("/info/:secret_key", requireAuth, h.GetInfo)
	router.DELETE("/admin/:secret_key", requireAuth, h.Deactivate)
	router.DELETE("/delete/:secret_key", requireAuth, h.Delete)
	router.GET("/:short_key", h.Redirect)
	return router, urls
}

func aliceURL() *model.URL {
	return &model.URL{
		ID:        uuid.New(),
		Key:       "Ab12Cd34",
		SecretKey: "Ab12Cd34_XyZ98abcdef",
		TargetURL: "https://example.com",
		IsActive:  true,
		OwnerID:   &alice.ID,
	}
}

func TestCreateURL_Success(t *testing.T) {
	router, urls := setupURLRouter(t)
	url := aliceURL()
	urls.On("Create", mock.Anything, "https://example.com", &alice.ID).Return(url, nil)

	w := perform(router, http.MethodPost, "/url", `{"target_url":"https://example.com"}`, "alice-token")

	assert.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Ab12Cd34", body["key"])
	assert.Equal(t, "Ab12Cd34_XyZ98abcdef", body["secret_key"])
	assert.Equal(t, "https://example.com", body["target_url"])
	assert.Equal(t, "http://sho.rt/Ab12Cd34", body["short_url"])
	assert.Equal(t, true, body["is_active"])
}

func TestCreateURL_RequiresToken(t *testing.T) {
	router, urls := setupURLRouter(t)

	w := perform(router, http.MethodPost, "/url", `{"target_url":"https://example.com"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	urls.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateURL_Errors(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{"malformed JSON", `{"target_url":`, nil, http.StatusBadRequest, "INVALID_JSON"},
		{"invalid URL", `{"target_url":"nope"}`, service.ErrInvalidURL, http.StatusBadRequest, "INVALID_URL"},
		{"keyspace exhausted", `{"target_url":"https://example.com"}`, service.ErrKeyspaceExhausted, http.StatusInternalServerError, "ID_GENERATION_FAILED"},
		{"database error", `{"target_url":"https://example.com"}`, repository.ErrDatabaseError, http.StatusInternalServerError, "DB_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, urls := setupURLRouter(t)
			if tc.serviceErr != nil {
				urls.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.serviceErr)
			}

			w := perform(router, http.MethodPost, "/url", tc.body, "alice-token")

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedCode)
		})
	}
}

func TestListURLs(t *testing.T) {
	router, urls := setupURLRouter(t)
	urls.On("ListOwned", mock.Anything, alice.ID).Return([]model.URL{*aliceURL()}, nil)
	urls.On("ListOwned", mock.Anything, bob.ID).Return([]model.URL{}, nil)

	w := perform(router, http.MethodGet, "/urls", "", "alice-token")
	assert.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ab12Cd34", list[0]["key"])

	w = perform(router, http.MethodGet, "/urls", "", "bob-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRedirect(t *testing.T) {
	testCases := []struct {
		name           string
		serviceURL     *model.URL
		serviceErr     error
		expectedStatus int
		expectedBody   string
	}{
		{"active URL", aliceURL(), nil, http.StatusTemporaryRedirect, ""},
		{"unknown key", nil, service.ErrURLNotFound, http.StatusNotFound, "Short URL not found"},
		{"deactivated key", nil, service.ErrURLDeactivated, http.StatusNotFound, "URL is deactivated"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, urls := setupURLRouter(t)
			urls.On("RedirectAndCount", mock.Anything, "Ab12Cd34").Return(tc.serviceURL, tc.serviceErr)

			w := perform(router, http.MethodGet, "/Ab12Cd34", "", "")

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.serviceURL != nil {
				assert.Equal(t, "https://example.com", w.Header().Get("Location"))
			} else {
				assert.Contains(t, w.Body.String(), tc.expectedBody)
			}
		})
	}
}

func TestGetURLDetails_HidesSecret(t *testing.T) {
	router, urls := setupURLRouter(t)
	urls.On("GetPublic", mock.Anything, "Ab12Cd34").Return(aliceURL(), nil)

	w := perform(router, http.MethodGet, "/url/Ab12Cd34", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://example.com")
	assert.NotContains(t, w.Body.String(), "secret_key")
	assert.NotContains(t, w.Body.String(), "XyZ98abcdef")
}

func TestQRCode(t *testing.T) {
	router, urls := setupURLRouter(t)
	urls.On("GetPublic", mock.Anything, "Ab12Cd34").Return(aliceURL(), nil)
	urls.On("GetPublic", mock.Anything, "gone1234").Return(nil, service.ErrURLDeactivated)

	w := perform(router, http.MethodGet, "/qr/Ab12Cd34?size=128", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	w = perform(router, http.MethodGet, "/qr/Ab12Cd34?size=5000", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, http.MethodGet, "/qr/gone1234", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnerRoutes(t *testing.T) {
	const secret = "Ab12Cd34_XyZ98abcdef"

	testCases := []struct {
		name           string
		method         string
		path           string
		serviceMethod  string
		serviceErr     error
		expectedStatus int
		expectedBody   string
	}{
		{"info as owner", http.MethodGet, "/info/" + secret, "GetOwned", nil, http.StatusOK, secret},
		{"info forbidden", http.MethodGet, "/info/" + secret, "GetOwned", service.ErrForbidden, http.StatusForbidden, "Permission denied"},
		{"info missing", http.MethodGet, "/info/" + secret, "GetOwned", service.ErrURLNotFound, http.StatusNotFound, "URL_NOT_FOUND"},
		{"deactivate as owner", http.MethodDelete, "/admin/" + secret, "Deactivate", nil, http.StatusOK, "URL deactivated successfully"},
		{"deactivate forbidden", http.MethodDelete, "/admin/" + secret, "Deactivate", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"deactivate missing", http.MethodDelete, "/admin/" + secret, "Deactivate", service.ErrURLNotFound, http.StatusNotFound, "URL_NOT_FOUND"},
		{"delete as owner", http.MethodDelete, "/delete/" + secret, "Delete", nil, http.StatusOK, "URL deleted successfully"},
		{"delete forbidden", http.MethodDelete, "/delete/" + secret, "Delete", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"delete missing", http.MethodDelete, "/delete/" + secret, "Delete", service.ErrURLNotFound, http.StatusNotFound, "URL_NOT_FOUND"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, urls := setupURLRouter(t)
			var result *model.URL
			if tc.serviceErr == nil {
				result = aliceURL()
			}
			urls.On(tc.serviceMethod, mock.Anything, secret, alice.ID).Return(result, tc.serviceErr)

			w := perform(router, tc.method, tc.path, "", "alice-token")

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectedBody)
			urls.AssertExpectations(t)
		})
	}
}

func TestOwnerRoutes_RequireToken(t *testing.T) {
	router, urls := setupURLRouter(t)

	for _, path := range []string{"/admin/x_y", "/delete/x_y"} {
		w := perform(router, http.MethodDelete, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := perform(router, http.MethodGet, "/info/x_y", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	urls.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything, mock.Anything)
	urls.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
