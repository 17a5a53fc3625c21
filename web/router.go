package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/activitypub"
	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// maxActivitySize bounds inbox request bodies.
const maxActivitySize = 1 << 20

type server struct {
	fed   *activitypub.Federation
	store domain.Store
}

// Router builds the HTTP server for the configured address.
func Router(conf *util.AppConfig, fed *activitypub.Federation, store domain.Store) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           NewEngine(fed, store),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewEngine wires the routes. Actor and object documents are served
// compressed; inboxes get a stricter per-IP rate limit and a body size cap.
func NewEngine(fed *activitypub.Federation, store domain.Store) *gin.Engine {
	s := &server{fed: fed, store: store}

	g := gin.New()
	g.Use(gin.Recovery(), requestLogger())
	g.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(10), 20)))

	objects := g.Group("/", gzip.Gzip(gzip.DefaultCompression))
	objects.GET("/u/:name", s.handlePerson)
	objects.GET("/u/:name/outbox", s.handlePersonOutbox)
	objects.GET("/c/:name", s.handleCommunity)
	objects.GET("/c/:name/followers", s.handleFollowers)
	objects.GET("/c/:name/outbox", s.handleCommunityOutbox)
	objects.GET("/post/:id", s.handlePost)
	objects.GET("/comment/:id", s.handleComment)
	objects.GET("/private_message/:id", s.handlePrivateMessage)
	objects.GET("/.well-known/webfinger", s.handleWebfinger)

	inboxes := g.Group("/", RateLimitMiddleware(NewRateLimiter(rate.Limit(5), 10)), MaxBytesMiddleware(maxActivitySize))
	inboxes.POST("/inbox", s.handleInbox)
	inboxes.POST("/u/:name/inbox", s.handleInbox)
	inboxes.POST("/c/:name/inbox", s.handleInbox)

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return g
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debugf("HTTP: %s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
