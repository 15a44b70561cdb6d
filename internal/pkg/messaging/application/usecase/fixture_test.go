package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	messaging "github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/application/domain"
	"github.com/yonigrin7234/moveboss-pro-sub002/internal/pkg/messaging/persistence/repository/memory"
)

const (
	carrierCo = "co-carrier"
	brokerCo  = "co-broker"
	loadID    = "load-1"
)

// world is a carrier company with one dispatcher and one driver, and a load
// brokered by a partner company.
type world struct {
	repo       *memory.Repository
	dispatcher messaging.Identity
	driver     messaging.Identity
	partner    messaging.Identity
	shared     messaging.Conversation
	internal   messaging.Conversation
}

func newWorld(t *testing.T) *world {
	t.Helper()
	repo := memory.New(nil)
	repo.AddCompany(messaging.CompanyRef{ID: carrierCo, Name: "Carrier Co"})
	repo.AddCompany(messaging.CompanyRef{ID: brokerCo, Name: "Broker Co"})
	repo.AddUser(memory.User{ID: "u-disp", AuthUserID: "auth-disp", CompanyID: carrierCo, FullName: "Dana Dispatch"})
	repo.AddUser(memory.User{ID: "u-partner", AuthUserID: "auth-partner", CompanyID: brokerCo, FullName: "Pat Partner"})
	repo.AddDriver(memory.Driver{ID: "d-1", AuthUserID: "auth-driver", CompanyID: carrierCo, FirstName: "Dee", LastName: "River"})
	partner := brokerCo
	repo.AddLoad(messaging.LoadRef{ID: loadID, CompanyID: carrierCo, PartnerCompanyID: &partner, LoadNumber: "LD-100", PickupCity: "Austin", DeliveryCity: "Dallas"})

	w := &world{
		repo:       repo,
		dispatcher: messaging.UserIdentity("u-disp", carrierCo),
		driver:     messaging.DriverIdentity("d-1", carrierCo),
		partner:    messaging.UserIdentity("u-partner", brokerCo),
	}
	lid := loadID
	w.shared = repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadShared, CompanyID: carrierCo, LoadID: &lid, PartnerCompanyID: &partner})
	w.internal = repo.PutConversation(messaging.Conversation{Type: messaging.ConversationLoadInternal, CompanyID: carrierCo, LoadID: &lid})

	w.join(w.shared, w.dispatcher, true)
	w.join(w.shared, w.partner, true)
	w.join(w.shared, w.driver, false)
	w.join(w.internal, w.dispatcher, true)
	w.join(w.internal, w.driver, true)
	return w
}

func (w *world) join(c messaging.Conversation, id messaging.Identity, canWrite bool) {
	w.repo.PutParticipant(messaging.Participant{
		ConversationID: c.ID,
		Identity:       id,
		CompanyID:      id.CompanyID,
		Role:           messaging.RoleDispatcher,
		CanRead:        true,
		CanWrite:       canWrite,
	})
}

func (w *world) participant(t *testing.T, convID string, id messaging.Identity) messaging.Participant {
	t.Helper()
	p, err := w.repo.GetParticipant(context.Background(), convID, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func (w *world) send(t *testing.T, conv messaging.Conversation, id messaging.Identity, body string) messaging.Message {
	t.Helper()
	res, err := NewSendMessageUseCase(w.repo, nil, zerolog.Nop()).Execute(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		Identity:       id,
		Body:           body,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	return *res.Message
}

type recordingNotifier struct {
	mu     sync.Mutex
	stored []messaging.Message
	err    error
}

func (n *recordingNotifier) MessageStored(_ context.Context, m messaging.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stored = append(n.stored, m)
	return n.err
}

var errBoom = errors.New("boom")
