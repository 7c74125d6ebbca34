package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ticketforge/reservation-core/internal/domain"
	"github.com/ticketforge/reservation-core/internal/observability"
)

// CatalogRepository reads pricing data maintained by the external catalog
// and seatmap services: price tiers per showtime and seat-to-tier
// assignments per venue.
type CatalogRepository struct {
	showtimes *mongo.Collection
	seatmaps  *mongo.Collection
	logger    observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		showtimes: db.Collection("showtimes"),
		seatmaps:  db.Collection("seatmaps"),
		logger:    logger,
	}
}

type ShowtimeDoc struct {
	ID         string         `bson:"_id"`
	EventID    string         `bson:"event_id"`
	VenueID    string         `bson:"venue_id"`
	PriceTiers []PriceTierDoc `bson:"price_tiers"`
}

type PriceTierDoc struct {
	Tier       string `bson:"tier"`
	PriceCents int64  `bson:"price_cents"`
	Currency   string `bson:"currency"`
}

type SeatmapDoc struct {
	VenueID string    `bson:"_id"`
	Seats   []SeatDoc `bson:"seats"`
}

type SeatDoc struct {
	ID   string `bson:"id"`
	Tier string `bson:"tier"`
}

func (c *CatalogRepository) getShowtime(ctx context.Context, showtimeID string) (*ShowtimeDoc, error) {
	var doc ShowtimeDoc
	err := c.showtimes.FindOne(ctx, bson.M{"_id": showtimeID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(domain.ErrNotFound, "showtime %s", showtimeID)
	}
	if err != nil {
		return nil, errors.Wrap(domain.ErrUpstreamUnavailable, err.Error())
	}
	return &doc, nil
}

func (c *CatalogRepository) PriceTiers(ctx context.Context, showtimeID string) ([]domain.PriceTier, error) {
	doc, err := c.getShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	tiers := make([]domain.PriceTier, 0, len(doc.PriceTiers))
	for _, t := range doc.PriceTiers {
		tiers = append(tiers, domain.PriceTier{Tier: t.Tier, PriceCents: t.PriceCents, Currency: t.Currency})
	}
	return tiers, nil
}

// SeatTiers resolves the tier assigned to each requested seat. Seats absent
// from the seatmap are omitted from the result; the finalizer fails on any
// seat it cannot price.
func (c *CatalogRepository) SeatTiers(ctx context.Context, showtimeID string, seatIDs []string) (map[string]string, error) {
	showtime, err := c.getShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	var seatmap SeatmapDoc
	err = c.seatmaps.FindOne(ctx, bson.M{"_id": showtime.VenueID}).Decode(&seatmap)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(domain.ErrNotFound, "seatmap for venue %s", showtime.VenueID)
	}
	if err != nil {
		return nil, errors.Wrap(domain.ErrUpstreamUnavailable, err.Error())
	}

	wanted := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		wanted[id] = struct{}{}
	}
	tiers := make(map[string]string, len(seatIDs))
	for _, seat := range seatmap.Seats {
		if _, ok := wanted[seat.ID]; ok && seat.Tier != "" {
			tiers[seat.ID] = seat.Tier
		}
	}
	return tiers, nil
}

func (c *CatalogRepository) UpsertShowtime(ctx context.Context, doc ShowtimeDoc) error {
	_, err := c.showtimes.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.Error("failed to upsert showtime", err)
	}
	return err
}

func (c *CatalogRepository) UpsertSeatmap(ctx context.Context, doc SeatmapDoc) error {
	_, err := c.seatmaps.ReplaceOne(ctx, bson.M{"_id": doc.VenueID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		c.logger.Error("failed to upsert seatmap", err)
	}
	return err
}
