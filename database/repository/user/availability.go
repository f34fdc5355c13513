package userRepo

import (
	"context"
	"fmt"
	"time"

	"tutorly/models"

	"go.mongodb.org/mongo-driver/bson"
)

// AddAvailabilitySlot appends a slot to the teacher's availability array.
func (r *MongoUserRepo) AddAvailabilitySlot(ctx context.Context, teacherID string, slot models.AvailabilitySlot) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": teacherID, "role": models.RoleTeacher}
	update := bson.M{
		"$push": bson.M{"availability": slot},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add availability slot for teacher %s: %w", teacherID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveAvailabilitySlot removes a slot by id from the teacher's
// availability array.
func (r *MongoUserRepo) RemoveAvailabilitySlot(ctx context.Context, teacherID, slotID string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": teacherID, "role": models.RoleTeacher}
	update := bson.M{
		"$pull": bson.M{"availability": bson.M{"id": slotID}},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove availability slot %s: %w", slotID, err)
	}
	if res.MatchedCount == 0 || res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTokenSet persists the token set for one provider. A nil set clears the
// connection. The write touches only that provider's fields so a refresh for
// one provider cannot race a mutation of the other.
func (r *MongoUserRepo) SaveTokenSet(ctx context.Context, teacherID string, platform models.Platform, set *models.OAuthTokenSet) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var tokenField, connectedField string
	switch platform {
	case models.PlatformGoogle:
		tokenField, connectedField = "googleTokens", "googleCalendarConnected"
	case models.PlatformCalendly:
		tokenField, connectedField = "calendlyTokens", "calendlyConnected"
	default:
		return fmt.Errorf("unknown platform %q", platform)
	}

	update := bson.M{"$set": bson.M{
		connectedField: set != nil,
		"updatedAt":    time.Now(),
	}}
	if set != nil {
		update["$set"].(bson.M)[tokenField] = set
	} else {
		update["$unset"] = bson.M{tokenField: ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"id": teacherID, "role": models.RoleTeacher}, update)
	if err != nil {
		return fmt.Errorf("failed to save %s token set for teacher %s: %w", platform, teacherID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
