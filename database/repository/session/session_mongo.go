package sessionRepo

import (
	"context"
	"fmt"
	"time"

	"tutorly/database"
	"tutorly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSessionRepo implements SessionRepository using MongoDB.
type MongoSessionRepo struct {
	coll *mongo.Collection
}

// NewMongoSessionRepo creates a new instance of SessionRepository using MongoDB.
func NewMongoSessionRepo() SessionRepository {
	coll := database.MongoClient.Database("tutorly").Collection("sessions")
	repo := &MongoSessionRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// ensureIndexes creates indexes for the conflict and lookup queries.
func (r *MongoSessionRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "teacherId", Value: 1}, {Key: "status", Value: 1}, {Key: "startTime", Value: 1}}},
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "status", Value: 1}, {Key: "startTime", Value: 1}}},
		{Keys: bson.D{{Key: "calendlyEventUri", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// activeStatuses are the statuses that occupy a time slot.
var activeStatuses = bson.A{models.StatusPending, models.StatusConfirmed}

// overlapFilter matches pending/confirmed sessions of the user overlapping
// the half-open interval [start,end).
func overlapFilter(userID string, role models.Role, start, end time.Time, excludeID string) bson.M {
	field := "teacherId"
	if role == models.RoleStudent {
		field = "studentId"
	}
	filter := bson.M{
		field:       userID,
		"status":    bson.M{"$in": activeStatuses},
		"startTime": bson.M{"$lt": end},
		"endTime":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

// GetByID retrieves a session by its unique ID.
func (r *MongoSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var session models.Session
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&session); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}
	return &session, nil
}

// Update replaces the stored session document.
func (r *MongoSessionRepo) Update(ctx context.Context, session *models.Session) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	session.UpdatedAt = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": session.ID}, bson.M{"$set": session})
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverlapping returns active sessions of the user overlapping [start,end).
func (r *MongoSessionRepo) ListOverlapping(ctx context.Context, userID string, role models.Role, start, end time.Time, excludeID string) ([]models.Session, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	return r.find(ctx, overlapFilter(userID, role, start, end, excludeID), nil)
}

// ListActiveForTeacher returns all pending/confirmed sessions of a teacher.
func (r *MongoSessionRepo) ListActiveForTeacher(ctx context.Context, teacherID string) ([]models.Session, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"teacherId": teacherID, "status": bson.M{"$in": activeStatuses}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
}

// ListByUser returns the user's sessions ordered by start time descending.
func (r *MongoSessionRepo) ListByUser(ctx context.Context, userID string, role models.Role, status models.SessionStatus, limit int64) ([]models.Session, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	field := "teacherId"
	if role == models.RoleStudent {
		field = "studentId"
	}
	filter := bson.M{field: userID}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, filter, opts)
}

// ListUpcoming returns the user's active sessions starting in [now, until).
func (r *MongoSessionRepo) ListUpcoming(ctx context.Context, userID string, role models.Role, now, until time.Time) ([]models.Session, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	field := "teacherId"
	if role == models.RoleStudent {
		field = "studentId"
	}
	filter := bson.M{
		field:       userID,
		"status":    bson.M{"$in": activeStatuses},
		"startTime": bson.M{"$gte": now, "$lt": until},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
}

// FindByCalendlyURI looks a session up by its stored Calendly event URI.
func (r *MongoSessionRepo) FindByCalendlyURI(ctx context.Context, uri string) (*models.Session, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var session models.Session
	err := r.coll.FindOne(ctx, bson.M{"calendlyEventUri": uri}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch session by calendly uri: %w", err)
	}
	return &session, nil
}

// FindUnsyncedCalendly finds a pending Calendly session at the given start
// time that never received an event reference (the synchronous create was
// skipped or lost the race with Calendly's own flow).
func (r *MongoSessionRepo) FindUnsyncedCalendly(ctx context.Context, start time.Time) (*models.Session, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"platform":         models.PlatformCalendly,
		"status":           models.StatusPending,
		"startTime":        start,
		"calendlyEventUri": bson.M{"$in": bson.A{nil, ""}},
	}
	var session models.Session
	err := r.coll.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch unsynced calendly session: %w", err)
	}
	return &session, nil
}

// CompletePast marks confirmed sessions whose end time has passed as completed.
func (r *MongoSessionRepo) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{"status": models.StatusConfirmed, "endTime": bson.M{"$lt": now}}
	update := bson.M{"$set": bson.M{"status": models.StatusCompleted, "updatedAt": now}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to complete past sessions: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoSessionRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Session, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.coll.Find(ctx, filter, opts)
	} else {
		cursor, err = r.coll.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}
