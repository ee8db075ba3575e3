package events

import (
	"github.com/matheus3301/zpp/internal/message"
	"github.com/matheus3301/zpp/internal/people"
	"github.com/matheus3301/zpp/internal/streams"
	"github.com/matheus3301/zpp/internal/zulip"
	"go.uber.org/zap"
)

// Echo is the part of the echo coordinator message events feed.
type Echo interface {
	ObserveMessageID(id int64)
	Lookup(value string) (message.LocalID, bool)
	Reify(id message.LocalID, serverID int64) error
}

func (p *Poller) dispatch(evt zulip.Event) {
	var err error
	switch evt.Type {
	case "heartbeat":
	case "message":
		err = p.onMessage(evt)
	case "presence":
		err = p.onPresence(evt)
	case "subscription":
		err = p.onSubscription(evt)
	case "realm_user":
		err = p.onRealmUser(evt)
	default:
		p.logger.Debug("ignoring event", zap.String("type", evt.Type), zap.Int64("id", evt.ID))
	}
	if err != nil {
		p.logger.Warn("failed to apply event", zap.String("type", evt.Type), zap.Int64("id", evt.ID), zap.Error(err))
	}
}

func (p *Poller) onMessage(evt zulip.Event) error {
	var me zulip.MessageEvent
	if err := evt.Decode(&me); err != nil {
		return err
	}
	e := p.models.Echo
	if e == nil {
		return nil
	}
	e.ObserveMessageID(me.Message.ID)

	isMine := p.models.People != nil && p.models.People.IsMyUserID(me.Message.SenderID)
	if !isMine || me.LocalMessageID == "" {
		return nil
	}
	id, ok := e.Lookup(me.LocalMessageID)
	if !ok {
		return nil
	}
	return e.Reify(id, me.Message.ID)
}

func (p *Poller) onPresence(evt zulip.Event) error {
	if p.models.Presence == nil {
		return nil
	}
	var pe zulip.PresenceEvent
	if err := evt.Decode(&pe); err != nil {
		return err
	}
	p.models.Presence.UpdateInfo(pe.UserID, pe.Raw(), int64(pe.ServerTimestamp))
	return nil
}

func (p *Poller) onSubscription(evt zulip.Event) error {
	reg := p.models.Streams
	if reg == nil {
		return nil
	}
	var se zulip.SubscriptionEvent
	if err := evt.Decode(&se); err != nil {
		return err
	}
	switch evt.Op {
	case "add":
		for _, s := range se.Subscriptions {
			reg.Add(streams.FromWire(s))
		}
	case "remove":
		for _, s := range se.Subscriptions {
			reg.MarkSubscribed(s.StreamID, false)
		}
	case "peer_add":
		reg.AddPeers(se.StreamIDs, se.UserIDs)
	case "peer_remove":
		reg.RemovePeers(se.StreamIDs, se.UserIDs)
	}
	return nil
}

func (p *Poller) onRealmUser(evt zulip.Event) error {
	reg := p.models.People
	if reg == nil {
		return nil
	}
	var re zulip.RealmUserEvent
	if err := evt.Decode(&re); err != nil {
		return err
	}
	switch evt.Op {
	case "add":
		reg.Add(people.FromWire(re.Person))
	case "update":
		reg.Update(re.Person)
	case "remove":
		reg.Deactivate(re.Person.UserID)
		if p.models.Presence != nil {
			p.models.Presence.Forget(re.Person.UserID)
		}
	}
	return nil
}
