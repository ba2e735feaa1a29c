package main

import (
	"database/sql"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/leagueauction/go/internal/auction/service"
	"github.com/mcdev12/leagueauction/go/internal/auth"
)

func setupServer(services *Services, database *sql.DB, port int) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)
	setupHealthCheck(mux, database)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// Any authenticated caller, plus anonymous round reads; the handlers
	// check team ownership themselves.
	auctionPath, auctionHandler := service.NewAuctionServiceHandler(
		services.Auction,
		connect.WithInterceptors(auth.NewPublicInterceptor(services.Verifier, service.AuctionServicePublicProcedures)),
	)
	mux.Handle(auctionPath, auctionHandler)

	adminPath, adminHandler := service.NewAdminServiceHandler(
		services.Admin,
		connect.WithInterceptors(auth.NewInterceptor(services.Verifier, auth.RoleCommittee, auth.RoleAdmin)),
	)
	mux.Handle(adminPath, adminHandler)
}

func setupHealthCheck(mux *http.ServeMux, database *sql.DB) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
