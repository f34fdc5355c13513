package sessionRepo

import (
	"context"
	"fmt"
	"time"

	"tutorly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateIfFree inserts the session unless an overlapping pending or
// confirmed session exists for its teacher or its student. The overlap check
// and the insert run in one transaction so two concurrent bookings for the
// same slot cannot both succeed.
func (r *MongoSessionRepo) CreateIfFree(ctx context.Context, session *models.Session) error {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	txnFn := func(sc mongo.SessionContext) error {
		for _, check := range []struct {
			userID string
			role   models.Role
		}{
			{session.TeacherID, models.RoleTeacher},
			{session.StudentID, models.RoleStudent},
		} {
			filter := overlapFilter(check.userID, check.role, session.StartTime, session.EndTime, "")
			n, err := r.coll.CountDocuments(sc, filter)
			if err != nil {
				return fmt.Errorf("overlap check failed: %w", err)
			}
			if n > 0 {
				return ErrConflict
			}
		}

		if _, err := r.coll.InsertOne(sc, session); err != nil {
			return fmt.Errorf("insert session failed: %w", err)
		}
		return nil
	}

	return r.withTransaction(ctx, txnFn)
}

// UpdateTimesIfFree moves a session to a new interval unless the new
// interval overlaps another active session of the teacher or the student.
func (r *MongoSessionRepo) UpdateTimesIfFree(ctx context.Context, id string, start, end time.Time) (*models.Session, error) {
	var updated models.Session

	txnFn := func(sc mongo.SessionContext) error {
		var session models.Session
		if err := r.coll.FindOne(sc, bson.M{"id": id}).Decode(&session); err != nil {
			if err == mongo.ErrNoDocuments {
				return ErrNotFound
			}
			return fmt.Errorf("fetch session failed: %w", err)
		}

		for _, check := range []struct {
			userID string
			role   models.Role
		}{
			{session.TeacherID, models.RoleTeacher},
			{session.StudentID, models.RoleStudent},
		} {
			filter := overlapFilter(check.userID, check.role, start, end, id)
			n, err := r.coll.CountDocuments(sc, filter)
			if err != nil {
				return fmt.Errorf("overlap check failed: %w", err)
			}
			if n > 0 {
				return ErrConflict
			}
		}

		session.StartTime = start
		session.EndTime = end
		session.UpdatedAt = time.Now()
		res, err := r.coll.UpdateOne(sc, bson.M{"id": id}, bson.M{"$set": session})
		if err != nil {
			return fmt.Errorf("update session times failed: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		updated = session
		return nil
	}

	if err := r.withTransaction(ctx, txnFn); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoSessionRepo) withTransaction(ctx context.Context, txnFn func(mongo.SessionContext) error) error {
	client := r.coll.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}
