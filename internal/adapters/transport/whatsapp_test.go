package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

func TestStoreDSN(t *testing.T) {
	assert.Equal(t, "file:auth_info/session.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		StoreDSN("auth_info/session.db"))
}

func TestSelfID(t *testing.T) {
	client := &whatsmeow.Client{Store: &store.Device{}}
	selfID := SelfID(client)

	assert.Empty(t, selfID())

	jid := types.NewADJID("966500000000", 0, 3)
	client.Store.ID = &jid

	assert.Equal(t, "966500000000:3@s.whatsapp.net", selfID())
}
