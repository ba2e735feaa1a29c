package service

import (
	"net/http"

	"connectrpc.com/connect"
)

const (
	AuctionServiceName = "auction.v1.AuctionService"
	AdminServiceName   = "auction.v1.AdminService"
)

const (
	AuctionServiceSubmitBidProcedure           = "/auction.v1.AuctionService/SubmitBid"
	AuctionServiceListBidsForPlayerProcedure   = "/auction.v1.AuctionService/ListBidsForPlayer"
	AuctionServiceListMyBidsProcedure          = "/auction.v1.AuctionService/ListMyBids"
	AuctionServiceSubmitTiebreakerBidProcedure = "/auction.v1.AuctionService/SubmitTiebreakerBid"
	AuctionServiceGetTiebreakerProcedure       = "/auction.v1.AuctionService/GetTiebreaker"
	AuctionServiceGetRoundProcedure            = "/auction.v1.AuctionService/GetRound"
	AuctionServiceListActiveRoundsProcedure    = "/auction.v1.AuctionService/ListActiveRounds"

	AdminServiceOpenRoundProcedure       = "/auction.v1.AdminService/OpenRound"
	AdminServiceForceFinalizeProcedure   = "/auction.v1.AdminService/ForceFinalize"
	AdminServiceResetStuckRoundProcedure = "/auction.v1.AdminService/ResetStuckRound"
	AdminServiceListStuckRoundsProcedure = "/auction.v1.AdminService/ListStuckRounds"
	AdminServiceCheckRoundProcedure      = "/auction.v1.AdminService/CheckRound"
)

// AuctionServicePublicProcedures may be called without a token.
var AuctionServicePublicProcedures = []string{
	AuctionServiceGetRoundProcedure,
	AuctionServiceListActiveRoundsProcedure,
}

// NewAuctionServiceHandler builds an HTTP handler for the auction service,
// returning the path to mount it on.
func NewAuctionServiceHandler(svc *AuctionService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(AuctionServiceSubmitBidProcedure,
		connect.NewUnaryHandler(AuctionServiceSubmitBidProcedure, svc.SubmitBid, opts...))
	mux.Handle(AuctionServiceListBidsForPlayerProcedure,
		connect.NewUnaryHandler(AuctionServiceListBidsForPlayerProcedure, svc.ListBidsForPlayer, opts...))
	mux.Handle(AuctionServiceListMyBidsProcedure,
		connect.NewUnaryHandler(AuctionServiceListMyBidsProcedure, svc.ListMyBids, opts...))
	mux.Handle(AuctionServiceSubmitTiebreakerBidProcedure,
		connect.NewUnaryHandler(AuctionServiceSubmitTiebreakerBidProcedure, svc.SubmitTiebreakerBid, opts...))
	mux.Handle(AuctionServiceGetTiebreakerProcedure,
		connect.NewUnaryHandler(AuctionServiceGetTiebreakerProcedure, svc.GetTiebreaker, opts...))
	mux.Handle(AuctionServiceGetRoundProcedure,
		connect.NewUnaryHandler(AuctionServiceGetRoundProcedure, svc.GetRound, opts...))
	mux.Handle(AuctionServiceListActiveRoundsProcedure,
		connect.NewUnaryHandler(AuctionServiceListActiveRoundsProcedure, svc.ListActiveRounds, opts...))
	return "/" + AuctionServiceName + "/", mux
}

// NewAdminServiceHandler builds an HTTP handler for the admin service
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withJSON(opts)
	mux := http.NewServeMux()
	mux.Handle(AdminServiceOpenRoundProcedure,
		connect.NewUnaryHandler(AdminServiceOpenRoundProcedure, svc.OpenRound, opts...))
	mux.Handle(AdminServiceForceFinalizeProcedure,
		connect.NewUnaryHandler(AdminServiceForceFinalizeProcedure, svc.ForceFinalize, opts...))
	mux.Handle(AdminServiceResetStuckRoundProcedure,
		connect.NewUnaryHandler(AdminServiceResetStuckRoundProcedure, svc.ResetStuckRound, opts...))
	mux.Handle(AdminServiceListStuckRoundsProcedure,
		connect.NewUnaryHandler(AdminServiceListStuckRoundsProcedure, svc.ListStuckRounds, opts...))
	mux.Handle(AdminServiceCheckRoundProcedure,
		connect.NewUnaryHandler(AdminServiceCheckRoundProcedure, svc.CheckRound, opts...))
	return "/" + AdminServiceName + "/", mux
}

func withJSON(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
}
