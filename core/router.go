package core

import (
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	landingPath = "/"
	loginPath   = "/auth/login"
	signupPath  = "/user/signup"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store *sessions.CookieStore, authService AuthService, users UserRepository, registry SessionRegistry, rules *RuleTable) *gin.Engine {
	r := gin.Default()

	// Global middleware: session resolution -> rule-table authorization.
	r.Use(SessionMiddleware(cfg, store, registry))
	r.Use(AuthorizeMiddleware(rules))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Landing pages. The HTML view layer lives elsewhere; these answer
	// with the data it would render.
	r.GET(landingPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, pageData(c, "main"))
	})
	r.GET("/main", func(c *gin.Context) {
		c.JSON(http.StatusOK, pageData(c, "main"))
	})
	r.GET("/dashboard", func(c *gin.Context) {
		c.JSON(http.StatusOK, pageData(c, "dashboard"))
	})

	auth := r.Group("/auth")
	{
		auth.GET("/login", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"page":           "login",
				"user_field":     cfg.LoginUserField,
				"password_field": cfg.LoginPasswordField,
				"message":        c.Query("message"),
			})
		})

		auth.POST("/login", func(c *gin.Context) {
			username := c.PostForm(cfg.LoginUserField)
			password := c.PostForm(cfg.LoginPasswordField)
			ctx := c.Request.Context()

			user, err := authService.Authenticate(ctx, username, password)
			if err != nil {
				redirectAuthFailure(c, err)
				return
			}

			token, err := registry.CreateOrReplace(ctx, user)
			if err != nil {
				log.Printf("auth: failed to create session for %q: %v", user.Username, err)
				redirectAuthFailure(c, ErrServiceUnavailable)
				return
			}

			sess := currentSession(c)
			// Fresh values on login (simple session rotation).
			sess.Values = map[interface{}]interface{}{}
			sess.Values["token"] = token
			applySessionOptions(cfg, sess)
			if err := sess.Save(c.Request, c.Writer); err != nil {
				_ = registry.Invalidate(ctx, token)
				log.Printf("auth: failed to persist session cookie for %q: %v", user.Username, err)
				redirectAuthFailure(c, ErrServiceUnavailable)
				return
			}

			c.Redirect(http.StatusFound, landingPath)
		})

		auth.GET("/fail", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"page":    "login_failed",
				"message": c.Query("message"),
			})
		})

		auth.POST("/logout", func(c *gin.Context) {
			sess := currentSession(c)
			if token, _ := sess.Values["token"].(string); token != "" {
				if err := registry.Invalidate(c.Request.Context(), token); err != nil {
					log.Printf("auth: failed to invalidate session: %v", err)
				}
			}
			sess.Values = map[interface{}]interface{}{}
			applySessionOptions(cfg, sess)
			sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
			if err := sess.Save(c.Request, c.Writer); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
				return
			}
			c.Redirect(http.StatusFound, landingPath)
		})
	}

	user := r.Group("/user")
	{
		user.GET("/signup", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"page":    "signup",
				"message": c.Query("message"),
			})
		})

		user.POST("/signup", func(c *gin.Context) {
			in := SignupInput{
				Username: c.PostForm("user_id"),
				Name:     c.PostForm("user_name"),
				Password: c.PostForm("user_pass"),
				Roles:    parseCSV(c.PostForm("role")),
			}

			rows, err := authService.Register(c.Request.Context(), in)
			if err != nil {
				log.Printf("signup: registration for %q failed: %v", in.Username, err)
			}
			if err != nil || rows == 0 {
				c.Redirect(http.StatusFound, signupPath+"?message="+url.QueryEscape("signup failed"))
				return
			}
			c.Redirect(http.StatusFound, loginPath+"?message="+url.QueryEscape("signup completed"))
		})

		user.GET("/me", func(c *gin.Context) {
			u := currentUser(c)
			if u == nil {
				// AuthorizeMiddleware already gates /user/*; belt only.
				c.Redirect(http.StatusFound, loginPath)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"username": u.Username,
				"name":     u.Name,
				"roles":    u.Roles,
			})
		})
	}

	admin := r.Group("/admin")
	{
		admin.GET("/users", func(c *gin.Context) {
			page, perPage := parsePagination(c.Query("page"), c.Query("per_page"))
			items, total, err := users.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list users")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
			})
		})
	}

	return r
}

// redirectAuthFailure classifies the failure and redirects with the
// user-facing message encoded in the target's query string.
func redirectAuthFailure(c *gin.Context, err error) {
	_, target := ClassifyAuthFailure(err)
	c.Redirect(http.StatusFound, target)
}

func pageData(c *gin.Context, page string) gin.H {
	data := gin.H{"page": page}
	if u := currentUser(c); u != nil {
		data["username"] = u.Username
		data["name"] = u.Name
	}
	return data
}

func parsePagination(pageStr, perPageStr string) (page, perPage int) {
	page, perPage = 1, 20
	if v, err := strconv.Atoi(pageStr); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(perPageStr); err == nil && v > 0 && v <= 100 {
		perPage = v
	}
	return page, perPage
}
