package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_reserve/internal/pkg/settings"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

var _ settings.Store = (*Store)(nil)

func TestDocumentRoundTrip(t *testing.T) {
	session := uuid.New()
	set := settings.Default().WithReserve(7)
	set.VRES = settings.Asset{PNom: 5, Extendable: true, CapitalCost: 20}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	raw, err := bson.Marshal(toDocument(session, set, now))
	assert.NilError(t, err)

	assert.Equal(t, bson.Raw(raw).Lookup("_id").StringValue(), session.String())
	assert.Equal(t, bson.Raw(raw).Lookup("settings", "reserve").Double(), 7.0)

	var doc document
	assert.NilError(t, bson.Unmarshal(raw, &doc))
	assert.DeepEqual(t, doc.Settings, set)
	assert.Assert(t, doc.Updated.Equal(now))
}

func TestConnectRejectsBadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Connect(ctx, Config{URI: "not-a-mongo-uri"})
	assert.ErrorContains(t, err, "mongodb")
}
