package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/logger"
	"fleettrack-service/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	timeWindowKey = "time_window"

	// maxUpdateAttempts bounds the re-read and retry after a guarded write
	// matched nothing
	maxUpdateAttempts = 3
)

// errTimeWindowChanged is returned when a legacy time window was rewritten
// between our read and our write. The caller retries on its next tick.
var errTimeWindowChanged = errors.New("time window changed concurrently")

// errUpdateConflict is returned when the load kept changing under the write.
var errUpdateConflict = errors.New("load changed concurrently")

// MongoLoadRepository implements LoadRepository
type MongoLoadRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// loadDocument keeps the raw time window so it can go through ParseTimeWindow;
// older documents store it as a serialized JSON string.
type loadDocument struct {
	entity.Load   `bson:",inline"`
	RawTimeWindow bson.RawValue `bson:"time_window,omitempty"`
}

func (d *loadDocument) toEntity() *entity.Load {
	load := d.Load
	load.TimeWindow = utils.ParseTimeWindow(d.RawTimeWindow)
	return &load
}

// NewMongoLoadRepository creates a new load repository
func NewMongoLoadRepository(db *mongo.Database, collectionName string, logger logger.Logger) repository.LoadRepository {
	collection := db.Collection(collectionName)

	// Index on status for the active-load query
	ctx := context.Background()
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"status": 1}},
		{Keys: bson.D{
			{Key: "vehicle_id", Value: 1},
			{Key: "status", Value: 1},
		}},
	})
	if err != nil {
		logger.Warn("Failed to create load indexes", "collection", collectionName, "error", err)
	}

	return &MongoLoadRepository{
		collection: collection,
		logger:     logger,
	}
}

// GetActiveLoads finds loads that are pending, scheduled or in transit
func (r *MongoLoadRepository) GetActiveLoads(ctx context.Context) ([]*entity.Load, error) {
	filter := bson.M{
		"status": bson.M{"$in": []entity.LoadStatus{
			entity.LoadPending,
			entity.LoadScheduled,
			entity.LoadInTransit,
		}},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "loading_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find active loads: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []loadDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode active loads: %w", err)
	}

	loads := make([]*entity.Load, 0, len(docs))
	for i := range docs {
		loads = append(loads, docs[i].toEntity())
	}
	return loads, nil
}

// UpdateLoad applies a patch to one load. Time window changes are written as
// individual dotted paths so the database merges them into the stored
// document; fields the patch does not name are never touched.
//
// Automatic milestones are write-once in the store itself: the update only
// matches while their fields are empty. When it matches nothing the load is
// read again and whatever it has recorded in the meantime is dropped from the
// patch, so a timestamp entered by hand is never replaced.
func (r *MongoLoadRepository) UpdateLoad(ctx context.Context, id string, patch entity.LoadPatch) (*entity.Load, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, err := r.setGuarded(ctx, id, patch)
		if err == nil {
			return doc.toEntity(), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("update load %s: %w", id, err)
		}

		current, err := r.findDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		load := current.toEntity()
		patch = patch.WithoutFilled(load)
		if patch.IsEmpty() {
			return load, nil
		}
		if !patch.TimeWindow.IsEmpty() && current.RawTimeWindow.Type != bson.TypeEmbeddedDocument && current.RawTimeWindow.Type != 0 {
			return r.updateLegacyTimeWindow(ctx, id, patch, current)
		}
	}
	return nil, fmt.Errorf("update load %s: %w", id, errUpdateConflict)
}

func (r *MongoLoadRepository) setGuarded(ctx context.Context, id string, patch entity.LoadPatch) (*loadDocument, error) {
	set := loadSetFields(patch, time.Now().UTC())
	twFields := timeWindowSetFields(timeWindowKey, patch.TimeWindow)
	for k, v := range twFields {
		set[k] = v
	}

	conds := append([]bson.M{idFilter(id)}, writeOnceFilters(patch, true)...)
	if len(twFields) > 0 {
		// dotted paths cannot descend into a legacy string or null value
		conds = append(conds, bson.M{"$or": []bson.M{
			{timeWindowKey: bson.M{"$type": "object"}},
			{timeWindowKey: bson.M{"$exists": false}},
		}})
	}
	return r.findOneAndSet(ctx, bson.M{"$and": conds}, set)
}

// updateLegacyTimeWindow handles loads whose time window is not an embedded
// document. The stored value is parsed, merged with the patch and written
// back as a document, guarded on the value we read. A value that cannot be
// read at all is left as it is and only status and milestones are written.
func (r *MongoLoadRepository) updateLegacyTimeWindow(ctx context.Context, id string, patch entity.LoadPatch, current *loadDocument) (*entity.Load, error) {
	set := loadSetFields(patch, time.Now().UTC())
	conds := append([]bson.M{idFilter(id)}, writeOnceFilters(patch, false)...)

	merged, guard, ok := legacyTimeWindowWrite(current.RawTimeWindow, patch.TimeWindow)
	if ok {
		set[timeWindowKey] = merged
		conds = append(conds, guard)
	} else {
		r.logger.Warn("Unreadable time window left untouched", "loadID", id)
	}

	doc, err := r.findOneAndSet(ctx, bson.M{"$and": conds}, set)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update load %s: %w", id, errTimeWindowChanged)
	}
	if err != nil {
		return nil, fmt.Errorf("update load %s: %w", id, err)
	}
	return doc.toEntity(), nil
}

// legacyTimeWindowWrite merges patch into a stored legacy value and returns
// the filter that pins the value read. ok is false when the value cannot be
// read, since writing the merge back would replace it wholesale.
func legacyTimeWindowWrite(raw bson.RawValue, patch *entity.TimeWindowPatch) (entity.TimeWindow, bson.M, bool) {
	existing, readable := utils.DecodeTimeWindow(raw)
	if !readable {
		return entity.TimeWindow{}, nil, false
	}

	guard := bson.M{timeWindowKey: raw}
	if raw.Type == 0 {
		guard = bson.M{timeWindowKey: nil}
	}
	return utils.MergeTimeWindow(existing, patch), guard, true
}

func (r *MongoLoadRepository) findDocument(ctx context.Context, id string) (*loadDocument, error) {
	var doc loadDocument
	err := r.collection.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update load %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read load %s: %w", id, err)
	}
	return &doc, nil
}

func (r *MongoLoadRepository) findOneAndSet(ctx context.Context, filter bson.M, set bson.M) (*loadDocument, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc loadDocument
	if err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// idFilter matches both ObjectID and string primary keys, since loads are
// created by another system.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": []interface{}{oid, id}}}
	}
	return bson.M{"_id": id}
}

// writeOnceFilters keeps the update from matching once a field an automatic
// milestone fills has been recorded. With withTimeWindow the time window
// actual written alongside is guarded as well.
func writeOnceFilters(patch entity.LoadPatch, withTimeWindow bool) []bson.M {
	var conds []bson.M
	for _, m := range patch.WriteOnce() {
		field := entity.MilestoneField(m.Leg, m.Event)
		conds = append(conds, bson.M{"$or": []bson.M{
			{field: bson.M{"$exists": false}},
			{field: nil},
		}})

		if withTimeWindow && patch.TimeWindow.LegFor(m.Leg).Actual(m.Event) != nil {
			path := timeWindowKey + "." + string(m.Leg) + "." + actualKey(m.Event)
			conds = append(conds, bson.M{"$or": []bson.M{
				{path: bson.M{"$exists": false}},
				{path: nil},
				{path: ""},
			}})
		}
	}
	return conds
}

func actualKey(event entity.MilestoneEvent) string {
	if event == entity.EventDeparture {
		return "actualDeparture"
	}
	return "actualArrival"
}

// loadSetFields builds the $set document for status and milestone changes.
func loadSetFields(patch entity.LoadPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	for _, m := range patch.Milestones {
		field := entity.MilestoneField(m.Leg, m.Event)
		set[field] = m.At.UTC()
		set[field+"_source"] = m.Source
		set[field+"_verified"] = m.Verified
	}
	return set
}

// timeWindowSetFields flattens a time window patch into dotted $set paths.
func timeWindowSetFields(prefix string, p *entity.TimeWindowPatch) bson.M {
	set := bson.M{}
	if p == nil {
		return set
	}
	addLegFields(set, prefix+".origin", p.Origin)
	addLegFields(set, prefix+".destination", p.Destination)
	if p.VarianceReason != nil {
		set[prefix+".varianceReason"] = *p.VarianceReason
	}

	if b := p.Backload; b != nil {
		bp := prefix + ".backload"
		putBool(set, bp+".enabled", b.Enabled)
		putBool(set, bp+".isThirdParty", b.IsThirdParty)
		putString(set, bp+".destination", b.Destination)
		putString(set, bp+".cargoType", b.CargoType)
		putString(set, bp+".notes", b.Notes)
		if q := b.Quantities; q != nil {
			putInt(set, bp+".quantities.bins", q.Bins)
			putInt(set, bp+".quantities.crates", q.Crates)
			putInt(set, bp+".quantities.pallets", q.Pallets)
		}
		if tp := b.ThirdParty; tp != nil {
			putString(set, bp+".thirdParty.company", tp.Company)
			putString(set, bp+".thirdParty.contactName", tp.ContactName)
			putString(set, bp+".thirdParty.contactPhone", tp.ContactPhone)
			putString(set, bp+".thirdParty.reference", tp.Reference)
		}
	}
	return set
}

func addLegFields(set bson.M, prefix string, p *entity.LegWindowPatch) {
	if p == nil {
		return
	}
	putString(set, prefix+".plannedArrival", p.PlannedArrival)
	putString(set, prefix+".plannedDeparture", p.PlannedDeparture)
	putString(set, prefix+".actualArrival", p.ActualArrival)
	putString(set, prefix+".actualDeparture", p.ActualDeparture)
	putString(set, prefix+".arrivalNote", p.ArrivalNote)
	putString(set, prefix+".departureNote", p.DepartureNote)
}

func putString(set bson.M, key string, v *string) {
	if v != nil {
		set[key] = *v
	}
}

func putBool(set bson.M, key string, v *bool) {
	if v != nil {
		set[key] = *v
	}
}

func putInt(set bson.M, key string, v *int) {
	if v != nil {
		set[key] = *v
	}
}
