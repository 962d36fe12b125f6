package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calndr/core/domain"
	"calndr/core/port/out"
	"calndr/pkg/logger"
	"calndr/pkg/ratelimit"
)

// debounceWindow bounds how often the same custody record can trigger a
// push to the same family: bulk-create and adjacency repair can touch a
// handful of records in a single mutation call, and a parent editing the
// same day twice in quick succession shouldn't double-buzz the other side.
const debounceWindow = 2 * time.Minute

// Fanout is C9: on custody create/update it enqueues a push payload to
// the other family member's device. Transport failures are logged and
// swallowed, never surfaced to the mutation that triggered them.
type Fanout struct {
	familyRepo out.FamilyRepository
	pusher     out.PushNotifier
	debouncer  *ratelimit.Debouncer
	now        func() time.Time
}

func NewFanout(familyRepo out.FamilyRepository, pusher out.PushNotifier, debouncer *ratelimit.Debouncer) *Fanout {
	return &Fanout{familyRepo: familyRepo, pusher: pusher, debouncer: debouncer, now: time.Now}
}

func (f *Fanout) NotifyCustodyChange(ctx context.Context, familyID uuid.UUID, actorUserID uuid.UUID, rec domain.CustodyRecord, event domain.NotificationEvent) {
	members, err := f.familyRepo.ListMembers(ctx, familyID)
	if err != nil {
		logger.Error("[Fanout.NotifyCustodyChange] list members failed family=%s: %v", familyID, err)
		return
	}
	recipient := domain.OtherParent(members, actorUserID)
	if recipient == nil || recipient.DeviceID == nil || *recipient.DeviceID == "" {
		return
	}

	if f.debouncer != nil {
		key := fmt.Sprintf("custody-notify:%s:%s", rec.ID, event)
		if f.debouncer.IsDuplicate(ctx, key) {
			return
		}
		f.debouncer.Mark(ctx, key)
	}

	title, body := custodyChangeCopy(event, rec)
	data := map[string]string{
		"custody_record_id": rec.ID.String(),
		"date":              rec.Date.Format("2006-01-02"),
	}

	if err := f.pusher.Send(ctx, *recipient.DeviceID, title, body, data); err != nil {
		logger.Error("[Fanout.NotifyCustodyChange] push send failed recipient=%s: %v", recipient.ID, err)
	}
}

func custodyChangeCopy(event domain.NotificationEvent, rec domain.CustodyRecord) (title, body string) {
	date := rec.Date.Format("Jan 2")
	if event == domain.EventCustodyCreated {
		return "Custody schedule updated", fmt.Sprintf("A custody record was added for %s", date)
	}
	return "Custody schedule changed", fmt.Sprintf("The custody record for %s was updated", date)
}
