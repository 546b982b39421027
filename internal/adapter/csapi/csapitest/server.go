// Package csapitest provides an in-memory Cryptshare REST server for tests.
package csapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jgivc/csclient/internal/adapter/csapi"
)

type File struct {
	Name     string
	Size     int64
	Checksum string
	Content  []byte
}

type Session struct {
	Sender     map[string]any
	Recipients map[string]any
	Settings   map[string]any
	Files      map[string]*File
	Order      []string
}

type failure struct {
	method string
	suffix string
	status int
	code   int
}

type Server struct {
	*httptest.Server

	mu sync.Mutex

	ClientID          string
	Code              string
	Verified          map[string]bool
	Tokens            map[string]string
	CodesSent         map[string]int
	PolicyAllowed     bool
	PolicyModes       []string
	PolicyRecipients  [][]string
	GeneratedPassword string
	ValidPasswords    map[string]bool
	Locales           []string
	TrackingID        string
	SessionLocation   string
	FileLocation      string
	Sessions          map[string]*Session
	Statuses          map[string]string
	TransferFiles     map[string][]byte
	TransferPassword  string
	TransferZip       []byte
	TransferEML       []byte
	Requests          []string

	failures []failure
	fileSeq  int
}

func NewServer() *Server {
	s := &Server{
		ClientID:          "client-1",
		Code:              "ABCDE12345",
		Verified:          map[string]bool{},
		Tokens:            map[string]string{},
		CodesSent:         map[string]int{},
		PolicyAllowed:     true,
		PolicyModes:       []string{"MANUAL", "GENERATED", "NONE"},
		GeneratedPassword: "Gen3rated!Pw",
		ValidPasswords:    map[string]bool{},
		Locales:           []string{"en", "de-DE", "de-AT"},
		TrackingID:        "20240522-065711-H8UoUSI6",
		Sessions:          map[string]*Session{},
		Statuses:          map[string]string{},
		TransferFiles:     map[string][]byte{},
	}

	r := chi.NewRouter()
	r.Use(s.record, s.inject)

	r.Get("/api/clients", s.clients)
	r.Get("/api/password", s.password)
	r.Post("/api/password", s.validatePassword)
	r.Get("/api/password/requirements", s.passwordRules)
	r.Get("/api/products/{product}/language-packs", s.languagePacks)

	r.Route("/api/users/{email}", func(r chi.Router) {
		r.Get("/verification", s.verification)
		r.Post("/verification/code/email", s.requestCode)
		r.Post("/verification/token", s.verifyCode)
		r.Post("/transfer-policy", s.policy)
		r.Get("/transfers", s.transfers)
		r.Get("/transfers/{id}", s.status)

		r.Post("/transfer-sessions", s.openSession)
		r.Route("/transfer-sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.patchSession)
			r.Post("/", s.sendSession)
			r.Delete("/", s.deleteSession)
			r.Post("/files", s.announceFile)
			r.Put("/files/{fileID}/content", s.fileContent)
			r.Delete("/files/{fileID}", s.deleteFile)
		})
	})

	r.Get("/api/transfers/{id}", s.downloadInfo)
	r.Get("/api/transfers/{id}/files", s.downloadFiles)
	r.Get("/api/transfers/{id}/files/{name}/content", s.downloadContent)
	r.Get("/api/transfers/{id}/zip", s.downloadArchive(func() []byte { return s.TransferZip }))
	r.Get("/api/transfers/{id}/eml", s.downloadArchive(func() []byte { return s.TransferEML }))

	s.Server = httptest.NewServer(r)

	return s
}

// FailOn answers requests whose path ends with suffix with the given status.
func (s *Server) FailOn(method, suffix string, status, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, failure{method: method, suffix: suffix, status: status, code: code})
}

// Update runs fn with the server state locked. Tests use it to read or change
// fields while the server is serving.
func (s *Server) Update(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s)
}

func (s *Server) RequestLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.Requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Requests = append(s.Requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if r.Header.Get(csapi.HeaderProductKey) != csapi.ProductKey {
			writeError(w, http.StatusBadRequest, 1000, "missing product key")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var hit *failure
		for i := range s.failures {
			f := s.failures[i]
			if f.method == r.Method && strings.HasSuffix(r.URL.Path, f.suffix) {
				hit = &f

				break
			}
		}
		s.mu.Unlock()

		if hit != nil {
			writeError(w, hit.status, hit.code, "injected failure")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": payload})
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{"errorCode": code, "errorMessage": msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) clients(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"clientId": s.ClientID})
}

func (s *Server) password(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"password": s.GeneratedPassword})
}

func (s *Server) validatePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	valid := s.ValidPasswords[body.Password]
	s.mu.Unlock()

	writeData(w, map[string]bool{"valid": valid})
}

func (s *Server) passwordRules(w http.ResponseWriter, _ *http.Request) {
	writeData(w, []map[string]any{
		{"name": "minimumLengthRequired", "details": map[string]any{"length": 10}},
		{"name": "digitsRequired"},
	})
}

func (s *Server) languagePacks(w http.ResponseWriter, _ *http.Request) {
	packs := make([]map[string]string, 0, len(s.Locales))
	for _, locale := range s.Locales {
		packs = append(packs, map[string]string{"locale": locale})
	}

	writeData(w, packs)
}

func (s *Server) verification(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	s.mu.Lock()
	token, issued := s.Tokens[email]
	verified := s.Verified[email] || (issued && r.Header.Get(csapi.HeaderVerificationToken) == token)
	s.mu.Unlock()

	writeData(w, map[string]any{"verified": verified, "validUntil": "2030-01-01T00:00:00+00:00"})
}

func (s *Server) requestCode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.CodesSent[chi.URLParam(r, "email")]++
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) verifyCode(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var body struct {
		VerificationCode string `json:"verificationCode"`
	}
	if err := decode(r, &body); err != nil || body.VerificationCode != s.Code {
		writeError(w, http.StatusBadRequest, 2001, "invalid verification code")

		return
	}

	token := "token-" + email

	s.mu.Lock()
	s.Tokens[email] = token
	s.mu.Unlock()

	writeData(w, map[string]string{"token": token})
}

func (s *Server) policy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipients []string `json:"recipients"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	s.PolicyRecipients = append(s.PolicyRecipients, body.Recipients)
	allowed := s.PolicyAllowed
	modes := s.PolicyModes
	s.mu.Unlock()

	writeData(w, map[string]any{
		"allowed": allowed,
		"settings": map[string]any{
			"maxRetentionPeriod": 14,
			"maxTotalSize":       1 << 30,
			"securityModes": []map[string]any{
				{"name": "ONE_TIME_PASSWORD", "config": map[string]any{"allowedPasswordModes": modes}},
			},
		},
	})
}

func (s *Server) sessionURL(r *http.Request, id string) string {
	return fmt.Sprintf("%s/api/users/%s/transfer-sessions/%s", s.URL, chi.URLParam(r, "email"), id)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sender     map[string]any `json:"sender"`
		Recipients map[string]any `json:"recipients"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	s.Sessions[s.TrackingID] = &Session{
		Sender:     body.Sender,
		Recipients: body.Recipients,
		Files:      map[string]*File{},
	}
	location := s.SessionLocation
	if location == "" {
		location = s.sessionURL(r, s.TrackingID)
	}
	s.mu.Unlock()

	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, exists := s.Sessions[chi.URLParam(r, "id")]
	if !exists {
		writeError(w, http.StatusNotFound, 4004, "transfer session not found")
	}

	return sess, exists
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	writeData(w, sess.Settings)
}

func (s *Server) patchSession(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := decode(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	sess.Settings = settings
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session(w, r); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	delete(s.Sessions, id)
	s.Statuses[id] = "SENT"

	writeJSON(w, http.StatusOK, map[string]string{"status": "SENT"})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session(w, r); !ok {
		return
	}

	delete(s.Sessions, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) announceFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileName string `json:"fileName"`
		Size     int64  `json:"size"`
		Checksum string `json:"checksum"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.fileSeq++
	fileID := fmt.Sprintf("f%d", s.fileSeq)
	sess.Files[fileID] = &File{Name: body.FileName, Size: body.Size, Checksum: body.Checksum}
	sess.Order = append(sess.Order, fileID)

	location := s.FileLocation
	if location == "" {
		location = s.sessionURL(r, chi.URLParam(r, "id")) + "/files/" + fileID
	}

	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) fileContent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, 1001, err.Error())

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	file, exists := sess.Files[chi.URLParam(r, "fileID")]
	if !exists {
		writeError(w, http.StatusNotFound, 4005, "file not found")

		return
	}

	file.Content = data
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if _, exists := sess.Files[fileID]; !exists {
		writeError(w, http.StatusNotFound, 4005, "file not found")

		return
	}

	delete(sess.Files, fileID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transfers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]map[string]string, 0, len(s.Statuses))
	for id, status := range s.Statuses {
		list = append(list, map[string]string{"trackingId": id, "status": status})
	}

	writeData(w, list)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, exists := s.Statuses[chi.URLParam(r, "id")]
	s.mu.Unlock()

	if !exists {
		writeError(w, http.StatusNotFound, 4006, "transfer not found")

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) checkDownload(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("password") != s.TransferPassword {
		writeError(w, http.StatusUnauthorized, 3002, "wrong password")

		return false
	}

	return true
}

func (s *Server) downloadInfo(w http.ResponseWriter, r *http.Request) {
	if !s.checkDownload(w, r) {
		return
	}

	writeData(w, map[string]any{"transferId": chi.URLParam(r, "id"), "fileCount": len(s.TransferFiles)})
}

func (s *Server) downloadFiles(w http.ResponseWriter, r *http.Request) {
	if !s.checkDownload(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	files := make([]map[string]any, 0, len(s.TransferFiles))
	for name, content := range s.TransferFiles {
		files = append(files, map[string]any{
			"fileName": name,
			"size":     len(content),
			"href":     fmt.Sprintf("/api/transfers/%s/files/%s/content?password=%s", id, name, s.TransferPassword),
		})
	}

	writeData(w, files)
}

func (s *Server) downloadContent(w http.ResponseWriter, r *http.Request) {
	if !s.checkDownload(w, r) {
		return
	}

	content, exists := s.TransferFiles[chi.URLParam(r, "name")]
	if !exists {
		writeError(w, http.StatusNotFound, 4005, "file not found")

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) downloadArchive(content func() []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.checkDownload(w, r) {
			return
		}

		data := content()
		if data == nil {
			writeError(w, http.StatusNotFound, 4005, "archive not found")

			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}
}
