package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scholarhub/internal/service"
	"scholarhub/internal/testutil"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartImage(t *testing.T, kind string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if kind != "" {
		require.NoError(t, writer.WriteField("kind", kind))
	}
	if content != nil {
		part, err := writer.CreateFormFile("image", "img.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, token, kind string, content []byte) (int, []byte) {
	t.Helper()
	body, contentType := multipartImage(t, kind, content)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/image", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return e.send(t, req)
}

func TestUploadAndServeImage(t *testing.T) {
	env := newTestEnv(t, "")
	_, token := env.user(t, "student@example.com", workflow.RoleStudent)

	status, body := env.upload(t, token, "", testutil.TinyPNG(t, 40, 40))
	require.Equal(t, http.StatusCreated, status, string(body))

	uploaded := decodeJSON[service.StoredImage](t, body)
	assert.True(t, strings.HasPrefix(uploaded.URL, "/uploads/profile/"), uploaded.URL)
	assert.True(t, strings.HasSuffix(uploaded.URL, ".webp"))
	assert.Equal(t, 40, uploaded.Width)

	status, _ = env.send(t, httptest.NewRequest(http.MethodGet, uploaded.URL, nil))
	assert.Equal(t, http.StatusOK, status)

	t.Run("same bytes map to the same file", func(t *testing.T) {
		status, body := env.upload(t, token, "", testutil.TinyPNG(t, 40, 40))
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, uploaded.URL, decodeJSON[service.StoredImage](t, body).URL)
	})
}

func TestUploadImageLargeIsResized(t *testing.T) {
	env := newTestEnv(t, "")
	_, token := env.user(t, "mod@example.com", workflow.RoleModerator)

	status, body := env.upload(t, token, service.ImageKindUniversity, testutil.TinyPNG(t, 3200, 1600))
	require.Equal(t, http.StatusCreated, status, string(body))

	uploaded := decodeJSON[service.StoredImage](t, body)
	assert.True(t, strings.HasPrefix(uploaded.URL, "/uploads/university/"))
	assert.Equal(t, service.UniversityImageMaxWidth, uploaded.Width)
	assert.Equal(t, service.UniversityImageMaxWidth/2, uploaded.Height)
}

func TestUploadImageRejections(t *testing.T) {
	env := newTestEnv(t, "")
	_, studentToken := env.user(t, "student@example.com", workflow.RoleStudent)

	tests := []struct {
		name       string
		kind       string
		content    []byte
		wantStatus int
	}{
		{"missing file", "", nil, http.StatusBadRequest},
		{"not an image", "", []byte("plain text pretending to be a picture"), http.StatusBadRequest},
		{"unknown kind", "banner", testutil.TinyPNG(t, 10, 10), http.StatusBadRequest},
		{"student university image", service.ImageKindUniversity, testutil.TinyPNG(t, 10, 10), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.upload(t, studentToken, tt.kind, tt.content)
			assert.Equal(t, tt.wantStatus, status, string(body))
		})
	}
}

func TestUploadImageDisabled(t *testing.T) {
	env := newTestEnv(t, "image_upload=off")
	_, token := env.user(t, "student@example.com", workflow.RoleStudent)

	status, _ := env.upload(t, token, "", testutil.TinyPNG(t, 10, 10))
	assert.Equal(t, http.StatusNotFound, status)
}
