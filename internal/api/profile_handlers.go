package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	domainerrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMyProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/profile",
		Summary:     "Get my profile",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGetMyProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsertMyProfile",
		Method:      http.MethodPut,
		Path:        "/api/v1/me/profile",
		Summary:     "Create or update my profile",
		Description: "Creates the profile on first call (username required). Later calls apply a partial update; omitted fields are kept.",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleUpsertMyProfile)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteMe",
		Method:        http.MethodDelete,
		Path:          "/api/v1/me",
		Summary:       "Delete my account",
		Description:   "Deletes the profile and everything that references it",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleDeleteMe)

	huma.Register(s.api, huma.Operation{
		OperationID: "registerChannel",
		Method:      http.MethodPut,
		Path:        "/api/v1/me/channel",
		Summary:     "Register delivery channel",
		Description: "Registers the device token nudges and pushes are delivered to, replacing any previous one",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleRegisterChannel)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeChannel",
		Method:        http.MethodDelete,
		Path:          "/api/v1/me/channel",
		Summary:       "Remove delivery channel",
		Tags:          []string{"Profile"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleRemoveChannel)
}

// === DTOs ===

// NudgePreferencesBody is the reminder schedule in local time.
type NudgePreferencesBody struct {
	Occurrence string   `json:"occurrence" enum:"never,daily,weekly,few_days" doc:"How often to be nudged"`
	TimesOfDay []string `json:"times_of_day,omitempty" maxItems:"6" doc:"Local times as HH:MM; only the hour is used"`
	DaysOfWeek []string `json:"days_of_week,omitempty" maxItems:"7" doc:"Lowercase English day names; daily without days means every day"`
}

// UpdateProfileBody is a partial profile edit.
type UpdateProfileBody struct {
	Username *string               `json:"username,omitempty" doc:"Unique username, 3 to 30 letters, digits, '_' or '.'"`
	Name     *string               `json:"name,omitempty" maxLength:"80" doc:"Display name"`
	Avatar   *string               `json:"avatar,omitempty" maxLength:"2048" doc:"Avatar URL"`
	Timezone *string               `json:"timezone,omitempty" doc:"IANA timezone, e.g. Europe/Paris"`
	Nudge    *NudgePreferencesBody `json:"nudge,omitempty" doc:"Reminder schedule"`
}

// UpsertProfileInput wraps the profile edit.
type UpsertProfileInput struct {
	Body UpdateProfileBody
}

// ProfileOutput returns a profile.
type ProfileOutput struct {
	Body *domain.Profile
}

// RegisterChannelInput carries the device token.
type RegisterChannelInput struct {
	Body struct {
		Token    string `json:"token" minLength:"1" maxLength:"512" doc:"Push token issued to the device"`
		Platform string `json:"platform" enum:"ios,android,web" doc:"Client platform"`
	}
}

// ChannelOutput returns the registered channel.
type ChannelOutput struct {
	Body *domain.DeliveryChannel
}

// === Handlers ===

func (s *Server) handleGetMyProfile(ctx context.Context, _ *struct{}) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.services.Profile.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: p}, nil
}

func (s *Server) handleUpsertMyProfile(ctx context.Context, input *UpsertProfileInput) (*ProfileOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req := service.UpdateProfileRequest{
		Username: input.Body.Username,
		Name:     input.Body.Name,
		Avatar:   input.Body.Avatar,
		Timezone: input.Body.Timezone,
	}
	if n := input.Body.Nudge; n != nil {
		req.Nudge = &domain.NudgePreferences{
			Occurrence: domain.Occurrence(n.Occurrence),
			TimesOfDay: n.TimesOfDay,
			DaysOfWeek: n.DaysOfWeek,
		}
	}

	p, err := s.services.Profile.Upsert(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: p}, nil
}

func (s *Server) handleDeleteMe(ctx context.Context, _ *struct{}) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Profile.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRegisterChannel(ctx context.Context, input *RegisterChannelInput) (*ChannelOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if s.services.Channels == nil {
		return nil, huma.Error503ServiceUnavailable("Channel registry not configured")
	}

	// Channels belong to existing profiles only.
	if _, err := s.services.Profile.Get(ctx, userID); err != nil {
		return nil, err
	}

	ch := &domain.DeliveryChannel{
		UserID:    userID,
		Token:     input.Body.Token,
		Platform:  domain.Platform(input.Body.Platform),
		UpdatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.services.Channels.Register(ctx, ch); err != nil {
		return nil, domainerrors.Unavailable(err, "channel registry unavailable")
	}
	return &ChannelOutput{Body: ch}, nil
}

func (s *Server) handleRemoveChannel(ctx context.Context, _ *struct{}) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if s.services.Channels == nil {
		return nil, huma.Error503ServiceUnavailable("Channel registry not configured")
	}

	if err := s.services.Channels.Remove(ctx, userID); err != nil {
		return nil, domainerrors.Unavailable(err, "channel registry unavailable")
	}
	return nil, nil
}
