package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	VehiclesCollection    = "vehicles"
	BookingsCollection    = "bookings"
	AlertsCollection      = "sos_alerts"
	LostItemsCollection   = "lost_items"
	PushTargetsCollection = "user_push_notification_target"
)

func createIndexes() {
	createIndex(VehiclesCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "number", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "stops", Value: 1}},
		},
	})

	bookingLookupIndexName := "PassengerVehicleIssued"
	createIndex(BookingsCollection, []mongo.IndexModel{
		{
			Options: &options.IndexOptions{
				Name: &bookingLookupIndexName,
			},
			Keys: bson.D{
				{Key: "passengerid", Value: 1},
				{Key: "vehicleid", Value: 1},
				{Key: "issuedat", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "vehicleid", Value: 1},
				{Key: "code", Value: 1},
				{Key: "issuedat", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "vehicleid", Value: 1},
				{Key: "issuedat", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "issuedat", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 3600), // Expire after 90 days
		},
	})

	createIndex(AlertsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "vehicleid", Value: 1},
				{Key: "creationdatetime", Value: -1},
			},
		},
	})

	createIndex(LostItemsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "vehicleid", Value: 1},
				{Key: "creationdatetime", Value: -1},
			},
		},
	})

	createIndex(PushTargetsCollection, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userid", Value: 1}},
		},
	})

	// dbwatch reads deleted records from their pre-images
	for _, collectionName := range []string{BookingsCollection, AlertsCollection, LostItemsCollection} {
		enablePreImages(collectionName)
	}
}

func enablePreImages(collectionName string) {
	err := MongoGlobalInstance.Database.RunCommand(context.Background(), bson.D{
		{Key: "collMod", Value: collectionName},
		{Key: "changeStreamPreAndPostImages", Value: bson.D{{Key: "enabled", Value: true}}},
	}).Err()
	if err != nil {
		log.Warn().Err(err).Str("collection", collectionName).Msg("Change stream pre-images unavailable")
	}
}

func createIndex(collectionName string, indexes []mongo.IndexModel) {
	_, err := GetCollection(collectionName).Indexes().CreateMany(context.Background(), indexes, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Str("collection", collectionName).Msg("Creating Index")
	}
}
