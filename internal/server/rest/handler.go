package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/whistledrop/whistledrop/internal/api"
	"github.com/whistledrop/whistledrop/internal/common"
	"github.com/whistledrop/whistledrop/internal/server/auth"
	"github.com/whistledrop/whistledrop/internal/server/services"
)

const (
	detailInvalidPassphrase = "Invalid Passphrase"
	detailHighLoad          = "Server is under high load, please try again later"
	detailUploadFailed      = "Upload failed"
	detailFileNotFound      = "File not found"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "WhistleDrop API"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil || req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	sess, err := s.users.Login(r.Context(), req.Passphrase)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, detailInvalidPassphrase)
			return
		}
		s.logger.Error(r.Context(), "login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info(r.Context(), "user logged in", "user_id", sess.UserID)
	writeJSON(w, http.StatusOK, api.TokenResponse{
		Message:     "Login successful",
		UserID:      sess.UserID,
		AccessToken: sess.AccessToken,
		TokenType:   auth.TokenType,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess, err := s.users.Register(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "register", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create user")
		return
	}

	s.logger.Info(r.Context(), "user registered", "user_id", sess.UserID)
	writeJSON(w, http.StatusOK, api.TokenResponse{
		Message:     "User created",
		UserID:      sess.UserID,
		Passphrase:  sess.Passphrase,
		AccessToken: sess.AccessToken,
		TokenType:   auth.TokenType,
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	files, err := s.uploads.List(r.Context(), user.ID)
	if err != nil {
		s.logger.Error(r.Context(), "list uploads", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not list files")
		return
	}

	out := make([]api.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, services.FileInfo(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if s.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || (s.maxUploadSize > 0 && r.ContentLength > s.maxUploadSize) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, detailUploadFailed)
		return
	}

	_, err = s.uploads.Upload(r.Context(), user.ID, header.Filename, header.Header.Get("Content-Type"), data)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: "success"})
	case errors.Is(err, common.ErrUnsupportedFileType):
		writeError(w, http.StatusUnsupportedMediaType, "Only PDF files are allowed")
	case errors.Is(err, common.ErrNoPublicKey):
		writeError(w, http.StatusInternalServerError, detailHighLoad)
	default:
		s.logger.Error(r.Context(), "upload", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, detailUploadFailed)
	}
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id := mux.Vars(r)["id"]

	_, err := s.uploads.Delete(r.Context(), user.ID, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: "File deleted successfully"})
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, detailFileNotFound)
	case errors.Is(err, common.ErrorForbidden):
		writeError(w, http.StatusForbidden, "You do not have permission to delete this file")
	default:
		s.logger.Error(r.Context(), "delete upload", "error", err, "file_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	// on failure the upgrader has already answered
	if err := s.hub.Serve(w, r, user.ID); err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade", "error", err)
	}
}

func (s *Server) handleKeyStock(w http.ResponseWriter, r *http.Request) {
	n, err := s.journalist.ActiveKeys(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "count keys", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, api.KeyStockResponse{Active: n})
}

func (s *Server) handleAddPublicKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	part, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No key file uploaded")
		return
	}
	defer part.Close()

	pemData, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No key file uploaded")
		return
	}

	err = s.journalist.AddPublicKey(r.Context(), id, pemData)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Public key uploaded"})
	case errors.Is(err, common.ErrInvalidPublicKey):
		writeError(w, http.StatusBadRequest, "Invalid public key")
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "Public key already exists")
	default:
		s.logger.Error(r.Context(), "add public key", "error", err, "key_id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	d, err := s.journalist.Download(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, detailFileNotFound)
			return
		}
		s.logger.Error(r.Context(), "download", "error", err, "file_id", id)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer d.Body.Close()

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(d.File.FileName)))
	h.Set(common.EncryptedKeyHeaderName, d.File.Key.WrappedKey)
	h.Set(common.NonceHeaderName, d.EncodedNonce())
	h.Set(common.PublicKeyIDHeaderName, d.File.Key.PublicKeyID)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "error", err, "file_id", id)
	}
}

func (s *Server) handleNewFiles(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("since_date")
	since, err := services.ParseSinceDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use ISO format (YYYY-MM-DD)")
		return
	}

	files, err := s.journalist.NewFiles(r.Context(), since)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "No new files found since the specified date")
			return
		}
		s.logger.Error(r.Context(), "new files", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=new_files_since_%s.zip", raw))
	w.WriteHeader(http.StatusOK)

	n, err := s.journalist.WriteArchive(r.Context(), w, files)
	if err != nil {
		s.logger.Error(r.Context(), "write archive", "error", err, "written", n)
		return
	}
	s.logger.Info(r.Context(), "archive sent", "files", n, "since", raw)
}
