package usecase

import (
	"context"
	"fmt"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	repository "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/port"
)

const (
	unknownSenderName = "Unknown"
	systemSenderName  = "System"
)

// resolveSenders attaches display profiles to stored messages. Driver senders
// come joined on the record; user senders are looked up in one batch keyed by
// the distinct user ids of the page.
func resolveSenders(ctx context.Context, repo repository.IdentityRepository, recs []messaging.MessageRecord) ([]messaging.MessageView, error) {
	seen := make(map[string]struct{})
	var userIDs []string
	for _, rec := range recs {
		if rec.Sender.Kind() != messaging.SenderUser {
			continue
		}
		if _, ok := seen[rec.Sender.ID()]; ok {
			continue
		}
		seen[rec.Sender.ID()] = struct{}{}
		userIDs = append(userIDs, rec.Sender.ID())
	}

	profiles := map[string]messaging.SenderProfile{}
	if len(userIDs) > 0 {
		var err error
		profiles, err = repo.UserProfiles(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	out := make([]messaging.MessageView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, messaging.MessageView{Message: rec.Message, SenderProfile: senderProfile(rec, profiles)})
	}
	return out, nil
}

func senderProfile(rec messaging.MessageRecord, users map[string]messaging.SenderProfile) messaging.SenderProfile {
	s := rec.Sender
	switch s.Kind() {
	case messaging.SenderDriver:
		name := rec.SenderDriver.FullName()
		if name == "" {
			name = unknownSenderName
		}
		return messaging.SenderProfile{Kind: messaging.SenderDriver, ID: s.ID(), Name: name}
	case messaging.SenderUser:
		if p, ok := users[s.ID()]; ok {
			p.Kind = messaging.SenderUser
			p.ID = s.ID()
			if p.Name == "" {
				p.Name = unknownSenderName
			}
			return p
		}
		return messaging.SenderProfile{Kind: messaging.SenderUser, ID: s.ID(), Name: unknownSenderName}
	default:
		return messaging.SenderProfile{Kind: messaging.SenderSystem, Name: systemSenderName}
	}
}
