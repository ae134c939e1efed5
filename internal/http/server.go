// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"carpool/internal/http/handlers"
	"carpool/internal/http/middleware"
	"carpool/internal/infra"
	"carpool/internal/modules/incident"
	"carpool/internal/modules/review"
	"carpool/internal/modules/ride"
	"carpool/internal/modules/vehicle"
	"carpool/internal/modules/wallet"
)

const AdminRole = "admin"

type ServerDeps struct {
	Rides    *ride.Service
	Vehicles *vehicle.Service
	Reviews  *review.Service
	Wallet    *wallet.Service
	Incidents *incident.Service
	Verifier  infra.TokenVerifier
	Logger    logrus.FieldLogger
	Location  *time.Location
}

type Server struct {
	rides    *ride.Service
	vehicles *vehicle.Service
	reviews  *review.Service
	wallet    *wallet.Service
	incidents *incident.Service
	verifier  infra.TokenVerifier
	log       logrus.FieldLogger
	loc       *time.Location
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		rides:    deps.Rides,
		vehicles: deps.Vehicles,
		reviews:  deps.Reviews,
		wallet:    deps.Wallet,
		incidents: deps.Incidents,
		verifier:  deps.Verifier,
		log:       deps.Logger,
		loc:       deps.Location,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

func (s *Server) Routes() *gin.Engine {
	if err := handlers.RegisterValidators(); err != nil {
		s.log.WithError(err).Error("register binding validators")
	}

	r := gin.New()
	r.Use(middleware.Logging(s.log), middleware.Recovery(s.log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(s.verifier))

	rideH := handlers.NewRideHandler(s.rides, s.loc)
	bookingH := handlers.NewBookingHandler(s.rides, s.loc)
	vehicleH := handlers.NewVehicleHandler(s.vehicles)
	reviewH := handlers.NewReviewHandler(s.reviews)
	walletH := handlers.NewWalletHandler(s.wallet)
	incidentH := handlers.NewIncidentHandler(s.incidents)

	api.GET("/vehicles/catalog", vehicleH.Catalog)
	api.POST("/vehicles", vehicleH.Register)
	api.GET("/vehicles", vehicleH.List)

	api.POST("/rides", rideH.Offer)
	api.GET("/rides", rideH.Search)
	api.GET("/rides/:id", rideH.Get)
	api.GET("/rides/:id/bookings", rideH.Bookings)
	api.POST("/rides/:id/bookings", rideH.Book)
	api.POST("/rides/:id/start", rideH.Start)
	api.POST("/rides/:id/end", rideH.End)
	api.POST("/rides/:id/cancel", rideH.Cancel)
	api.GET("/rides/:id/settlement", rideH.Settlement)
	api.POST("/rides/:id/expenses", walletH.Add)
	api.GET("/rides/:id/expenses", walletH.List)

	api.GET("/bookings/:id", bookingH.Get)
	api.POST("/bookings/:id/confirm", bookingH.Confirm)
	api.POST("/bookings/:id/reject", bookingH.Reject)
	api.POST("/bookings/:id/cancel", bookingH.Cancel)
	api.POST("/bookings/:id/complete", bookingH.Complete)
	api.POST("/bookings/:id/review", reviewH.ReviewDriver)
	api.POST("/bookings/:id/rate-passenger", reviewH.RatePassenger)

	api.GET("/users/:id/reviews", reviewH.ForUser)
	api.GET("/me/summary", rideH.Summary)

	api.POST("/incidents", incidentH.Submit)
	api.GET("/incidents", incidentH.Mine)
	api.POST("/sos/trigger", incidentH.TriggerSOS)
	api.POST("/sos/cancel", incidentH.CancelSOS)

	admin := api.Group("/admin", middleware.RequireRole(AdminRole))
	admin.POST("/sweep", rideH.Sweep)
	admin.GET("/incidents", incidentH.Queue)
	admin.POST("/incidents/:id/resolve", incidentH.Resolve)
	admin.POST("/incidents/:id/dismiss", incidentH.Dismiss)

	return r
}
