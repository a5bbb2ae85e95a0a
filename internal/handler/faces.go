package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/service"
)

// MaxUploadSize bounds enrollment and recognition uploads.
const MaxUploadSize = 16 << 20

// ListFacesHandler returns the enrolled faces in enrollment order.
func ListFacesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		faces := manager.Store().List()
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"faces": faces,
			"count": len(faces),
		})
	}
}

// EnrollFaceHandler enrolls the single face of a multipart "image" upload under "name".
func EnrollFaceHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readUpload(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		name := r.FormValue("name")
		id, err := manager.EnrollImage(data, name)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		entry := models.FaceEntry{ID: id, Name: strings.TrimSpace(name)}
		if rec, ok := manager.Store().Get(id); ok {
			entry.Name = rec.Name
		}
		logger.Info("Face enrolled via API: %s (%s)", entry.ID, entry.Name)
		writeJSON(w, logger, http.StatusCreated, entry)
	}
}

// DeleteFaceHandler removes the face given by the "id" query parameter.
func DeleteFaceHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}

		if err := manager.RemoveFace(id); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// FaceImageHandler serves the stored grayscale raster of a face.
func FaceImageHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := manager.Store().Get(r.URL.Query().Get("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, manager.Store().RasterPath(rec))
	}
}

// RecognizeHandler runs the pipeline on an uploaded image and returns the outcomes and the
// annotated JPEG (base64 in JSON).
func RecognizeHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readUpload(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		annotated, outcomes, err := manager.RecognizeImage(data)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"faces": outcomes,
			"image": annotated,
		})
	}
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("image file required: %w", err)
	}
	defer file.Close()

	return io.ReadAll(file)
}
