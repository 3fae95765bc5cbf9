package board

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/sirupsen/logrus"
)

const sessionUserKey = "userID"

// viewData carries the fields every view receives.
type viewData struct {
	CurrentUser *User
	Query       string
}

type frontPageData struct {
	viewData
	*FrontPage
}

type topicsPageData struct {
	viewData
	Topics []Topic
}

type profilePageData struct {
	viewData
	*ProfilePage
}

type postPageData struct {
	viewData
	*PostPage
}

// postFormData drives the shared create/update form. Create distinguishes
// the two uses.
type postFormData struct {
	viewData
	Post   *Post
	Topics []Topic
	Create bool
	Error  string
}

type deleteConfirmData struct {
	viewData
	Object string
	Action string
}

type loginPageData struct {
	viewData
	Page  string
	Error string
}

type profileEditData struct {
	viewData
	Profile *User
	Error   string
}

type Handlers struct {
	service  *Service
	renderer Renderer
	Session  *scs.SessionManager
	log      *logrus.Logger
}

func NewHandlers(service *Service, renderer Renderer, session *scs.SessionManager, log *logrus.Logger) *Handlers {
	return &Handlers{service: service, renderer: renderer, Session: session, log: log}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.frontPage)
	mux.HandleFunc("/topics/", h.topicsPage)
	mux.HandleFunc("/profile/", h.profilePage)
	mux.HandleFunc("/profile_edit/", h.editProfile)
	mux.HandleFunc("/post/", h.postPage)
	mux.HandleFunc("/create-post/", h.createPost)
	mux.HandleFunc("/update-post/", h.updatePost)
	mux.HandleFunc("/delete-post/", h.deletePost)
	mux.HandleFunc("/delete-message/", h.deleteMessage)
	mux.HandleFunc("/login/", h.login)
	mux.HandleFunc("/logout/", h.logout)
	mux.HandleFunc("/register/", h.register)
}

// --- helpers ---

// currentUser resolves the session to a user, or nil for guests.
func (h *Handlers) currentUser(r *http.Request) *User {
	id := h.Session.GetString(r.Context(), sessionUserKey)
	if id == "" {
		return nil
	}
	user, err := h.service.UserByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.log.WithError(err).Error("failed to load session user")
		}
		return nil
	}
	return user
}

// requireUser gates a handler on authentication. Guests are redirected to
// the login page rather than shown an error.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) *User {
	user := h.currentUser(r)
	if user == nil {
		http.Redirect(w, r, "/login/", http.StatusSeeOther)
		return nil
	}
	return user
}

// pathID extracts the numeric id trailing a route prefix.
func pathID(r *http.Request, prefix string) (int64, bool) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handlers) render(w http.ResponseWriter, name string, data any) {
	if err := h.renderer.Render(w, name, data); err != nil {
		h.log.WithError(err).WithField("view", name).Error("failed to render view")
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, err error, msg string) {
	h.log.WithError(err).Error(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (h *Handlers) forbidden(w http.ResponseWriter) {
	http.Error(w, "You are not allowed to do that", http.StatusForbidden)
}

// failOp maps a domain error from a mutating operation to a response.
func (h *Handlers) failOp(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, ErrForbidden):
		h.forbidden(w)
	default:
		h.serverError(w, err, msg)
	}
}

func (h *Handlers) view(r *http.Request) viewData {
	return viewData{CurrentUser: h.currentUser(r), Query: r.URL.Query().Get("q")}
}

// --- listing ---

func (h *Handlers) frontPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vd := h.view(r)
	page, err := h.service.ListPosts(r.Context(), vd.Query)
	if err != nil {
		h.serverError(w, err, "Failed to retrieve posts")
		return
	}
	h.render(w, "main.html", frontPageData{viewData: vd, FrontPage: page})
}

func (h *Handlers) topicsPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vd := h.view(r)
	topics, err := h.service.ListTopics(r.Context(), vd.Query)
	if err != nil {
		h.serverError(w, err, "Failed to retrieve topics")
		return
	}
	h.render(w, "topics.html", topicsPageData{viewData: vd, Topics: topics})
}

func (h *Handlers) profilePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/profile/"), "/")
	page, err := h.service.UserProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, err, "Failed to retrieve profile")
		return
	}
	h.render(w, "profile.html", profilePageData{viewData: h.view(r), ProfilePage: page})
}

// --- posts ---

func (h *Handlers) postPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/post/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		user := h.requireUser(w, r)
		if user == nil {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		if _, err := h.service.PostMessage(r.Context(), user, id, r.FormValue("body")); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
				return
			}
			h.failOp(w, r, err, "Failed to post message")
			return
		}
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, err, "Failed to retrieve post")
		return
	}
	h.render(w, "post.html", postPageData{viewData: h.view(r), PostPage: page})
}

func (h *Handlers) createPost(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		_, err := h.service.CreatePost(r.Context(), user,
			r.FormValue("name"), r.FormValue("description"), r.FormValue("topic"))
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				h.renderPostForm(w, r, user, nil, true, verr.Error())
				return
			}
			h.serverError(w, err, "Failed to create post")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderPostForm(w, r, user, nil, true, "")
}

func (h *Handlers) updatePost(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "/update-post/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		_, err := h.service.UpdatePost(r.Context(), user, id,
			r.FormValue("name"), r.FormValue("description"), r.FormValue("topic"))
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				post, gerr := h.service.PostByID(r.Context(), id)
				if gerr != nil {
					h.failOp(w, r, gerr, "Failed to retrieve post")
					return
				}
				h.renderPostForm(w, r, user, post, false, verr.Error())
				return
			}
			h.failOp(w, r, err, "Failed to update post")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	post, err := h.service.PostByID(r.Context(), id)
	if err != nil {
		h.failOp(w, r, err, "Failed to retrieve post")
		return
	}
	if post.HostID != user.ID {
		h.forbidden(w)
		return
	}
	h.renderPostForm(w, r, user, post, false, "")
}

func (h *Handlers) renderPostForm(w http.ResponseWriter, r *http.Request, user *User, post *Post, create bool, errMsg string) {
	topics, err := h.service.ListTopics(r.Context(), "")
	if err != nil {
		h.serverError(w, err, "Failed to retrieve topics")
		return
	}
	h.render(w, "post_form.html", postFormData{
		viewData: viewData{CurrentUser: user},
		Post:     post,
		Topics:   topics,
		Create:   create,
		Error:    errMsg,
	})
}

// deletePost is a two-phase flow: GET renders a confirmation view, POST
// performs the delete.
func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "/delete-post/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := h.service.DeletePost(r.Context(), user, id); err != nil {
			h.failOp(w, r, err, "Failed to delete post")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	post, err := h.service.PostByID(r.Context(), id)
	if err != nil {
		h.failOp(w, r, err, "Failed to retrieve post")
		return
	}
	if post.HostID != user.ID {
		h.forbidden(w)
		return
	}
	h.render(w, "delete.html", deleteConfirmData{
		viewData: viewData{CurrentUser: user},
		Object:   post.Name,
		Action:   r.URL.Path,
	})
}

// --- messages ---

// deleteMessage mirrors deletePost's confirm-then-act flow, gated on the
// message's author.
func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "/delete-message/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := h.service.DeleteMessage(r.Context(), user, id); err != nil {
			h.failOp(w, r, err, "Failed to delete message")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	msg, err := h.service.GetMessage(r.Context(), id)
	if err != nil {
		h.failOp(w, r, err, "Failed to retrieve message")
		return
	}
	if msg.AuthorID != user.ID {
		h.forbidden(w)
		return
	}
	h.render(w, "delete.html", deleteConfirmData{
		viewData: viewData{CurrentUser: user},
		Object:   msg.Body,
		Action:   r.URL.Path,
	})
}

// --- accounts ---

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		user, err := h.service.Login(r.Context(), r.FormValue("username"), r.FormValue("password"))
		if err != nil {
			var aerr *AuthError
			if errors.As(err, &aerr) {
				h.log.WithField("username", r.FormValue("username")).Warn("failed login attempt")
				h.render(w, "login_register.html", loginPageData{
					Page:  "login",
					Error: "Invalid username or password",
				})
				return
			}
			h.serverError(w, err, "Login failed")
			return
		}
		if err := h.startSession(r, user); err != nil {
			h.serverError(w, err, "Failed to create session")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, "login_register.html", loginPageData{Page: "login"})
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.requireUser(w, r) == nil {
		return
	}
	if err := h.Session.Destroy(r.Context()); err != nil {
		h.serverError(w, err, "Failed to end session")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		user, err := h.service.Register(r.Context(),
			r.FormValue("username"), r.FormValue("password"),
			r.FormValue("email"), r.FormValue("display_name"))
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				h.render(w, "login_register.html", loginPageData{
					Page:  "register",
					Error: verr.Error(),
				})
				return
			}
			h.serverError(w, err, "Registration failed")
			return
		}
		h.log.WithField("username", user.Username).Info("user registered")
		// Auto-login after registration.
		if err := h.startSession(r, user); err != nil {
			h.serverError(w, err, "Failed to create session")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, "login_register.html", loginPageData{Page: "register"})
}

func (h *Handlers) startSession(r *http.Request, user *User) error {
	if err := h.Session.RenewToken(r.Context()); err != nil {
		return err
	}
	h.Session.Put(r.Context(), sessionUserKey, user.ID)
	return nil
}

func (h *Handlers) editProfile(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		updated, err := h.service.UpdateProfile(r.Context(), user,
			r.FormValue("username"), r.FormValue("email"), r.FormValue("display_name"))
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				h.render(w, "profile_edit.html", profileEditData{
					viewData: viewData{CurrentUser: user},
					Profile:  user,
					Error:    verr.Error(),
				})
				return
			}
			h.serverError(w, err, "Failed to update profile")
			return
		}
		http.Redirect(w, r, "/profile/"+updated.ID, http.StatusSeeOther)
		return
	}

	h.render(w, "profile_edit.html", profileEditData{
		viewData: viewData{CurrentUser: user},
		Profile:  user,
	})
}
