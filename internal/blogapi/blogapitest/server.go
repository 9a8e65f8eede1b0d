// Package blogapitest runs an in-memory blog API for tests.
package blogapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quillfeed/quill/internal/blogapi"
)

const defaultPerPage = 10

type account struct {
	Name     string
	Email    string
	Password string
}

// Server is a fake blog API backed by maps. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	perPage  int
	nextID   int64
	posts    []blogapi.Post
	accounts map[string]*account
	tokens   map[string]string
	fail     map[string]int
	requests map[string]int
}

// New starts a fake API server. Callers must Close it.
func New() *Server {
	s := &Server{
		perPage:  defaultPerPage,
		nextID:   1,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		fail:     make(map[string]int),
		requests: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/logout", s.handleLogout)
			r.Get("/user", s.handleGetUser)
			r.Put("/user", s.handleUpdateUser)
			r.Delete("/user", s.handleDeleteUser)
			r.Get("/posts", s.handleListPosts)
			r.Post("/posts", s.handleCreatePost)
			r.Get("/posts/{id}", s.handleGetPost)
			r.Delete("/posts/{id}", s.handleDeletePost)
		})
	})
	return r
}

// SetPerPage changes the page size used by GET /api/posts.
func (s *Server) SetPerPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.perPage = n
	}
}

// AddUser registers an account and returns a valid token for it.
func (s *Server) AddUser(name, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = &account{Name: name, Email: email, Password: password}
	return s.issueLocked(email)
}

// AddPost appends a post authored by email and returns it.
func (s *Server) AddPost(email, title, body string) blogapi.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPostLocked(email, title, body, "")
}

// Posts returns a copy of the stored posts in feed order.
func (s *Server) Posts() []blogapi.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]blogapi.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// FailNext makes the next matching request ("METHOD /path") answer status.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[route] = status
}

// Requests reports how many requests matched route ("METHOD /path").
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests[route]++
		status, failing := s.fail[route]
		delete(s.fail, route)
		s.mu.Unlock()
		if failing {
			writeJSON(w, status, map[string]any{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
			return
		}
		r.Header.Set("X-Test-Email", email)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds blogapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad json"})
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	if !ok || acct.Password != creds.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}
	token := s.issueLocked(acct.Email)
	user := blogapi.User{Name: acct.Name, Email: acct.Email}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, blogapi.AuthResponse{Token: token, User: user, Message: "Logged in"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg blogapi.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad json"})
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(reg.Name) == "" {
		fields["name"] = append(fields["name"], "The name field is required.")
	}
	if !strings.Contains(reg.Email, "@") {
		fields["email"] = append(fields["email"], "The email must be a valid email address.")
	}
	if reg.Password == "" || reg.Password != reg.PasswordConfirmation {
		fields["password"] = append(fields["password"], "The password confirmation does not match.")
	}
	s.mu.Lock()
	if _, exists := s.accounts[reg.Email]; exists {
		fields["email"] = append(fields["email"], "The email has already been taken.")
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		writeValidation(w, fields)
		return
	}
	s.accounts[reg.Email] = &account{Name: reg.Name, Email: reg.Email, Password: reg.Password}
	token := s.issueLocked(reg.Email)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, blogapi.AuthResponse{
		Token:   token,
		User:    blogapi.User{Name: reg.Name, Email: reg.Email},
		Message: "Registered",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acct, ok := s.accounts[r.Header.Get("X-Test-Email")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return
	}
	writeJSON(w, http.StatusOK, blogapi.User{Name: acct.Name, Email: acct.Email})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd blogapi.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad json"})
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(upd.Name) == "" {
		fields["name"] = []string{"The name field is required."}
	}
	if !strings.Contains(upd.Email, "@") {
		fields["email"] = []string{"The email must be a valid email address."}
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	current := r.Header.Get("X-Test-Email")
	s.mu.Lock()
	acct := s.accounts[current]
	if acct == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return
	}
	delete(s.accounts, current)
	acct.Name, acct.Email = upd.Name, upd.Email
	if upd.Password != "" {
		acct.Password = upd.Password
	}
	s.accounts[acct.Email] = acct
	for tok, email := range s.tokens {
		if email == current {
			s.tokens[tok] = acct.Email
		}
	}
	for i := range s.posts {
		if s.posts[i].Author != nil && s.posts[i].Author.Email == current {
			s.posts[i].Author = &blogapi.Author{Name: acct.Name, Email: acct.Email}
		}
	}
	user := blogapi.User{Name: acct.Name, Email: acct.Email}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.Header.Get("X-Test-Email")
	s.mu.Lock()
	delete(s.accounts, email)
	for tok, owner := range s.tokens {
		if owner == email {
			delete(s.tokens, tok)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Account deleted"})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	perPage := s.perPage
	total := len(s.posts)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	start := (page - 1) * perPage
	data := []blogapi.Post{}
	if start < total {
		end := min(start+perPage, total)
		data = append(data, s.posts[start:end]...)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, blogapi.PostPage{
		CurrentPage: page,
		Data:        data,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	var post blogapi.Post
	if idx >= 0 {
		post = s.posts[idx]
	}
	s.mu.Unlock()
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeValidation(w, map[string][]string{"image": {"The image field is required."}})
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	body := strings.TrimSpace(r.FormValue("body"))
	fields := map[string][]string{}
	if title == "" {
		fields["title"] = []string{"The title field is required."}
	}
	if body == "" {
		fields["body"] = []string{"The body field is required."}
	}
	imageName := ""
	file, header, err := r.FormFile("image")
	if err != nil {
		fields["image"] = []string{"The image field is required."}
	} else {
		_, _ = io.Copy(io.Discard, file)
		_ = file.Close()
		imageName = header.Filename
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	s.mu.Lock()
	post := s.addPostLocked(r.Header.Get("X-Test-Email"), title, body, "posts/"+imageName)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	email := r.Header.Get("X-Test-Email")
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		return
	}
	if author := s.posts[idx].Author; author == nil || author.Email != email {
		s.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "This action is unauthorized."})
		return
	}
	s.posts = append(s.posts[:idx], s.posts[idx+1:]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Post deleted"})
}

func (s *Server) issueLocked(email string) string {
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

func (s *Server) addPostLocked(email, title, body, image string) blogapi.Post {
	var author *blogapi.Author
	if acct, ok := s.accounts[email]; ok {
		author = &blogapi.Author{Name: acct.Name, Email: acct.Email}
	} else if email != "" {
		author = &blogapi.Author{Email: email}
	}
	post := blogapi.Post{
		ID:            s.nextID,
		Title:         title,
		Body:          body,
		Image:         image,
		TruncatedBody: truncate(body, 40),
		Author:        author,
	}
	s.nextID++
	s.posts = append(s.posts, post)
	return post
}

func (s *Server) indexLocked(id int64) int {
	i := sort.Search(len(s.posts), func(i int) bool { return s.posts[i].ID >= id })
	if i < len(s.posts) && s.posts[i].ID == id {
		return i
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
