package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/handler"
	"github.com/noah-isme/gema-grader-api/internal/service"
)

type mockUploadService struct {
	lastName string
	response dto.UploadResponse
	err      error
}

func (m *mockUploadService) Upload(_ context.Context, file *multipart.FileHeader) (dto.UploadResponse, error) {
	if file != nil {
		if _, err := file.Open(); err != nil {
			return dto.UploadResponse{}, err
		}
		m.lastName = file.Filename
	}
	if m.err != nil {
		return dto.UploadResponse{}, m.err
	}
	return m.response, nil
}

func multipartImage(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadHandler_Success(t *testing.T) {
	svc := &mockUploadService{response: dto.UploadResponse{Path: "/srv/uploads/photo-abc.png", SizeBytes: 123, MimeType: "image/png", Checksum: "abc", FileName: "photo-abc.png"}}
	app := fiber.New()
	handler.NewUploadHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/uploads"))

	body, contentType := multipartImage(t, "photo.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool               `json:"success"`
		Data    dto.UploadResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "upload successful", response.Message)
	require.Equal(t, "photo.png", svc.lastName)
	require.Equal(t, svc.response.Path, response.Data.Path)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	app := fiber.New()
	handler.NewUploadHandler(&mockUploadService{}, zerolog.New(io.Discard)).Register(app.Group("/api/v1/uploads"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var response errorEnvelope
	decodeResponse(t, resp, &response)
	require.Equal(t, "missing_file", response.ErrorKind)
}

func TestUploadHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
		kind       string
	}{
		{name: "too_large", err: service.ErrUploadTooLarge, statusCode: fiber.StatusRequestEntityTooLarge, kind: "too_large"},
		{name: "type", err: service.ErrUploadTypeNotAllowed, statusCode: fiber.StatusBadRequest, kind: "unsupported_type"},
		{name: "missing", err: service.ErrUploadMissing, statusCode: fiber.StatusBadRequest, kind: "missing_file"},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError, kind: "upload_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handler.NewUploadHandler(&mockUploadService{err: tc.err}, zerolog.New(io.Discard)).Register(app.Group("/api/v1/uploads"))

			body, contentType := multipartImage(t, "doc.pdf", []byte("pdf"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)

			var response errorEnvelope
			decodeResponse(t, resp, &response)
			require.Equal(t, tc.kind, response.ErrorKind)
		})
	}
}
