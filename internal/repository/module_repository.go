package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

// ModuleRepository handles persistence of module documents. Modules are owned
// by the admin-facing editor; this repository only reads them and mutates the
// assignedUsers roster.
type ModuleRepository struct {
	coll *mongo.Collection
}

// NewModuleRepository constructs the repository on the modules collection.
func NewModuleRepository(db *mongo.Database) *ModuleRepository {
	return &ModuleRepository{coll: db.Collection("modules")}
}

// FindByID returns a module by its hex id. Callers detect absence via
// mongo.ErrNoDocuments.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("parse module id %q: %w", id, err)
	}
	var module models.Module
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&module); err != nil {
		return nil, err
	}
	return &module, nil
}

// ListActiveByUser returns non-archived modules whose roster contains the
// user, excluding excludeID when set.
func (r *ModuleRepository) ListActiveByUser(ctx context.Context, userID int64, excludeID string) ([]models.Module, error) {
	filter := bson.M{
		"assignedUsers": userID,
		"archived":      bson.M{"$ne": true},
	}
	if excludeID != "" {
		oid, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("parse module id %q: %w", excludeID, err)
		}
		filter["_id"] = bson.M{"$ne": oid}
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list modules for user %d: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var modules []models.Module
	if err := cursor.All(ctx, &modules); err != nil {
		return nil, fmt.Errorf("decode modules for user %d: %w", userID, err)
	}
	return modules, nil
}

// SetAssignedUsers replaces a module's roster.
func (r *ModuleRepository) SetAssignedUsers(ctx context.Context, id string, users []int64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("parse module id %q: %w", id, err)
	}
	update := bson.M{"$set": bson.M{
		"assignedUsers": users,
		"updatedAt":     time.Now().UTC(),
	}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("set assigned users on module %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// PullAssignedUser removes one user from a module's roster.
func (r *ModuleRepository) PullAssignedUser(ctx context.Context, id string, userID int64) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("parse module id %q: %w", id, err)
	}
	update := bson.M{
		"$pull": bson.M{"assignedUsers": userID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return fmt.Errorf("pull user %d from module %s: %w", userID, id, err)
	}
	return nil
}

// ExistingIDs reports which of the given module ids exist in the document
// store. Unparseable ids are reported as missing.
func (r *ModuleRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("check module ids: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode module id: %w", err)
		}
		existing[doc.ID.Hex()] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate module ids: %w", err)
	}
	return existing, nil
}
