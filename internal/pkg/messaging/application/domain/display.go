package messaging

import "strings"

// Viewer selects which variant of the derived display fields to produce.
type Viewer int

const (
	OwnerView Viewer = iota
	DriverView
)

func ViewerFor(id Identity) Viewer {
	if id.IsDriver() {
		return DriverView
	}
	return OwnerView
}

// DisplayTitle returns the stored title, or a fallback derived from the type.
func DisplayTitle(rec ConversationRecord, v Viewer) string {
	if rec.Title != nil && strings.TrimSpace(*rec.Title) != "" {
		return *rec.Title
	}
	ctx := rec.Context
	switch rec.Type {
	case ConversationLoadShared:
		return "Shared - " + loadNumber(ctx.Load)
	case ConversationLoadInternal:
		return loadNumber(ctx.Load)
	case ConversationTripInternal:
		if ctx.Trip != nil && ctx.Trip.TripNumber != "" {
			return "Trip " + ctx.Trip.TripNumber
		}
		return "Trip"
	case ConversationDriverDispatch:
		if v == OwnerView {
			if name := ctx.Driver.FullName(); name != "" {
				return name
			}
		}
		return "Dispatch"
	case ConversationCompanyToCompany:
		if ctx.PartnerCompany != nil && ctx.PartnerCompany.Name != "" {
			return ctx.PartnerCompany.Name
		}
		return "Partner"
	}
	return "Conversation"
}

// DisplaySubtitle returns the secondary line shown under the title.
func DisplaySubtitle(rec ConversationRecord, v Viewer) string {
	ctx := rec.Context
	switch rec.Type {
	case ConversationLoadShared:
		if ctx.PartnerCompany != nil && ctx.PartnerCompany.Name != "" {
			return ctx.PartnerCompany.Name
		}
		if ctx.Load != nil && (ctx.Load.PickupCity != "" || ctx.Load.DeliveryCity != "") {
			return ctx.Load.PickupCity + " → " + ctx.Load.DeliveryCity
		}
		return ""
	case ConversationLoadInternal:
		return "Team Chat"
	case ConversationTripInternal:
		if v == OwnerView && ctx.Trip != nil {
			if name := ctx.Trip.Driver.FullName(); name != "" {
				return name
			}
			if name := ctx.Driver.FullName(); name != "" {
				return name
			}
		}
		return "Team Chat"
	case ConversationDriverDispatch:
		if v == DriverView {
			return "Direct message"
		}
		return "Direct Message"
	case ConversationCompanyToCompany:
		return "Company Chat"
	}
	return ""
}

func loadNumber(l *LoadRef) string {
	if l == nil || l.LoadNumber == "" {
		return "Load"
	}
	return l.LoadNumber
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func isBlank(s *string) bool { return s == nil || *s == "" }

func equalPtr(p *string, v string) bool { return p != nil && *p == v }
