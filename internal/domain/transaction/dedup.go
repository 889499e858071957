package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	// csvDescriptionPrefix is how much of a statement description feeds the
	// content hash of a CSV row.
	csvDescriptionPrefix = 30

	// notificationTextPrefix is how much of the raw notification text feeds
	// the notification hash.
	notificationTextPrefix = 50

	// csvWallClock renders the statement's own date and time without a zone.
	csvWallClock = "2006-01-02 15:04:05"
)

// HashKey returns the hex sha256 of the parts joined with "|".
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// CSVRowExternalID derives the content hash for a statement row without a
// provider-native id. The recipe is fixed: format tag, the wall-clock date and
// time as written on the statement ("yyyy-MM-dd HH:mm:ss" in occurredAt's own
// location, so the configured ledger timezone does not change the key), signed
// minor amount, first 30 runes of the raw description. Changing it breaks
// deduplication of overlapping statement imports.
func CSVRowExternalID(formatTag string, occurredAt time.Time, signedMinor int64, rawDescription string) string {
	return HashKey(
		formatTag,
		occurredAt.Format(csvWallClock),
		strconv.FormatInt(signedMinor, 10),
		runePrefix(strings.TrimSpace(rawDescription), csvDescriptionPrefix),
	)
}

// NotificationExternalID derives the key of a captured notification. The post
// time is truncated to the minute so duplicate OS deliveries a few seconds
// apart collapse to one key.
func NotificationExternalID(postedAt time.Time, amountMinor int64, appID, rawText string) string {
	minute := postedAt.UTC().Truncate(time.Minute).Unix()
	return HashKey(
		strconv.FormatInt(minute, 10),
		strconv.FormatInt(amountMinor, 10),
		appID,
		runePrefix(rawText, notificationTextPrefix),
	)
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
