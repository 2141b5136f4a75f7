package admin

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/julienschmidt/httprouter"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "sketchturn.admin.v1.AdminService"

	ResetRosterProcedure = "/" + AdminServiceName + "/ResetRoster"
	GetSessionProcedure  = "/" + AdminServiceName + "/GetSession"
)

// Controller is the part of the session the admin surface drives.
type Controller interface {
	ResetRoster(ctx context.Context) error
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Strokes(ctx context.Context) ([]models.Stroke, error)
}

// Service serves the admin RPCs over Connect. Requests and responses use
// protobuf well-known types, so no generated code is involved.
type Service struct {
	ctl Controller
}

func NewService(ctl Controller) *Service {
	return &Service{ctl: ctl}
}

func (s *Service) ResetRoster(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	if err := s.ctl.ResetRoster(ctx); err != nil {
		return nil, toConnectError(err)
	}
	out, err := structpb.NewStruct(map[string]any{"message": deleteAllUsersMessage})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	log.Info().Str("procedure", ResetRosterProcedure).Msg("roster reset requested")
	return connect.NewResponse(out), nil
}

func (s *Service) GetSession(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	snap, err := s.ctl.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	out, err := structpb.NewStruct(snapshotFields(snap))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// RegisterRoutes mounts the Connect procedures on router.
func (s *Service) RegisterRoutes(router *httprouter.Router, opts ...connect.HandlerOption) {
	router.Handler(http.MethodPost, ResetRosterProcedure,
		connect.NewUnaryHandler(ResetRosterProcedure, s.ResetRoster, opts...))
	router.Handler(http.MethodPost, GetSessionProcedure,
		connect.NewUnaryHandler(GetSessionProcedure, s.GetSession, opts...))
}

func snapshotFields(snap session.Snapshot) map[string]any {
	players := make([]any, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, map[string]any{
			"name":         p.Name,
			"connectionId": p.ConnectionID,
			"rating":       p.Rating,
		})
	}
	drawn := make([]any, 0, len(snap.DrawnThisRound))
	for _, id := range snap.DrawnThisRound {
		drawn = append(drawn, id)
	}
	return map[string]any{
		"phase":          string(snap.Phase),
		"drawer":         snap.DrawerID,
		"round":          snap.Round,
		"maxRounds":      snap.MaxRounds,
		"timer":          snap.TimerRemaining,
		"players":        players,
		"drawnThisRound": drawn,
		"strokes":        snap.StrokeCount,
	}
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
