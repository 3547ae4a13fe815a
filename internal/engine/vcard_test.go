package engine_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-bot/internal/engine"
	"github.com/tartampluch/go-birthday-bot/internal/store"
)

func TestVCards_RoundTrip(t *testing.T) {
	records := []store.Record{
		{UserID: 101, DisplayName: ptr("Anna K"), Username: ptr("anna_k"), Birthday: date(2003, 2, 14)},
		{UserID: 102, Username: ptr("boris"), Birthday: date(2002, 11, 30)},
		{UserID: 103, DisplayName: ptr("No Birthday")},
	}

	var buf bytes.Buffer
	require.NoError(t, engine.EncodeVCards(&buf, records))
	assert.Contains(t, buf.String(), "X-TELEGRAM-ID:101")
	assert.Contains(t, buf.String(), "BDAY:20030214")

	members, err := engine.DecodeVCards(&buf)
	require.NoError(t, err)
	require.Len(t, members, 2, "the member without birthday is skipped on import")

	assert.Equal(t, engine.ImportedMember{
		UserID: 101, Username: "anna_k", Name: "Anna K",
		Birthday: time.Date(2003, 2, 14, 0, 0, 0, 0, time.UTC),
	}, members[0])
	assert.Equal(t, int64(102), members[1].UserID)
	assert.Empty(t, members[1].Name, "a name equal to the username is not a display name")
}

func TestDecodeVCards_SkipsIncomplete(t *testing.T) {
	input := strings.Join([]string{
		"BEGIN:VCARD", "VERSION:4.0", "FN:No Id", "BDAY:1990-01-01", "END:VCARD",
		"BEGIN:VCARD", "VERSION:4.0", "FN:Year Unknown", "BDAY:--0101", "X-TELEGRAM-ID:7", "END:VCARD",
		"BEGIN:VCARD", "VERSION:4.0", "FN:Good", "BDAY:1990-01-01", "X-TELEGRAM-ID:8", "END:VCARD",
	}, "\r\n") + "\r\n"

	members, err := engine.DecodeVCards(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(8), members[0].UserID)
	assert.Equal(t, "Good", members[0].Name)
}

func TestImportedMember_Update(t *testing.T) {
	m := engine.ImportedMember{UserID: 1, Birthday: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	u := m.Update()

	assert.Equal(t, store.OpSet, u.Birthday.Op())
	assert.Equal(t, store.OpKeep, u.Username.Op())
	assert.Equal(t, store.OpKeep, u.DisplayName.Op())
	assert.Equal(t, store.OpKeep, u.PhotoID.Op())
}
