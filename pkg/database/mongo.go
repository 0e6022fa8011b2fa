package database

import (
	"context"
	"errors"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewIdentifier(kind string) string {
	return "busify:" + kind + ":" + primitive.NewObjectID().Hex()
}

func NewMongoStores(instance *MongoInstance) *Stores {
	return &Stores{
		Vehicles:    &MongoVehicleStore{Collection: instance.Database.Collection(VehiclesCollection)},
		Bookings:    &MongoBookingStore{Collection: instance.Database.Collection(BookingsCollection)},
		Alerts:      &MongoAlertStore{Collection: instance.Database.Collection(AlertsCollection)},
		LostItems:   &MongoLostItemStore{Collection: instance.Database.Collection(LostItemsCollection)},
		PushTargets: &MongoPushTargetStore{Collection: instance.Database.Collection(PushTargetsCollection)},
	}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "creationdatetime", Value: -1}})
}

func vehicleFilter(vehicleID string) bson.M {
	if vehicleID == "" {
		return bson.M{}
	}

	return bson.M{"vehicleid": vehicleID}
}

type MongoVehicleStore struct {
	Collection *mongo.Collection
}

func (s *MongoVehicleStore) GetVehicle(ctx context.Context, vehicleID string) (*ctdf.Vehicle, error) {
	var vehicle *ctdf.Vehicle
	err := s.Collection.FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"primaryidentifier": vehicleID},
			bson.M{"number": vehicleID},
		},
	}).Decode(&vehicle)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ctdf.NewNotFoundError("vehicle", vehicleID)
	} else if err != nil {
		return nil, err
	}

	return vehicle, nil
}

func (s *MongoVehicleStore) ListVehicles(ctx context.Context) ([]*ctdf.Vehicle, error) {
	return findAll[ctdf.Vehicle](ctx, s.Collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "primaryidentifier", Value: 1}}))
}

func (s *MongoVehicleStore) SearchVehicles(ctx context.Context, pickup string, destination string) ([]*ctdf.Vehicle, error) {
	return findAll[ctdf.Vehicle](ctx, s.Collection, bson.M{
		"stops": bson.M{"$all": bson.A{pickup, destination}},
	}, options.Find().SetSort(bson.D{{Key: "primaryidentifier", Value: 1}}))
}

func (s *MongoVehicleStore) UpsertVehicles(ctx context.Context, vehicles []*ctdf.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}

	var operations []mongo.WriteModel
	for _, vehicle := range vehicles {
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"primaryidentifier": vehicle.PrimaryIdentifier}).
			SetReplacement(vehicle).
			SetUpsert(true))
	}

	_, err := s.Collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))

	return err
}

type MongoBookingStore struct {
	Collection *mongo.Collection
}

func (s *MongoBookingStore) SaveTicket(ctx context.Context, ticket *ctdf.Ticket) error {
	_, err := s.Collection.InsertOne(ctx, ticket)

	return err
}

func (s *MongoBookingStore) LatestTicket(ctx context.Context, passengerID string, vehicleID string) (*ctdf.Ticket, error) {
	var ticket *ctdf.Ticket
	err := s.Collection.FindOne(ctx,
		bson.M{"passengerid": passengerID, "vehicleid": vehicleID},
		options.FindOne().SetSort(bson.D{{Key: "issuedat", Value: -1}}),
	).Decode(&ticket)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ctdf.NewNotFoundError("booking", passengerID+"/"+vehicleID)
	} else if err != nil {
		return nil, err
	}

	return ticket, nil
}

func (s *MongoBookingStore) LiveTickets(ctx context.Context, vehicleID string, since time.Time) ([]*ctdf.Ticket, error) {
	return findAll[ctdf.Ticket](ctx, s.Collection,
		bson.M{"vehicleid": vehicleID, "issuedat": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "issuedat", Value: 1}}),
	)
}

func (s *MongoBookingStore) FindTicket(ctx context.Context, vehicleID string, code string, since time.Time) (*ctdf.Ticket, error) {
	var ticket *ctdf.Ticket
	err := s.Collection.FindOne(ctx,
		bson.M{"vehicleid": vehicleID, "code": code, "issuedat": bson.M{"$gte": since}},
		options.FindOne().SetSort(bson.D{{Key: "issuedat", Value: -1}}),
	).Decode(&ticket)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ctdf.NewNotFoundError("ticket", vehicleID+"/"+code)
	} else if err != nil {
		return nil, err
	}

	return ticket, nil
}

func (s *MongoBookingStore) ListTickets(ctx context.Context) ([]*ctdf.Ticket, error) {
	return findAll[ctdf.Ticket](ctx, s.Collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "issuedat", Value: 1}}))
}

type MongoAlertStore struct {
	Collection *mongo.Collection
}

func (s *MongoAlertStore) CreateAlert(ctx context.Context, alert *ctdf.Alert) error {
	if alert.PrimaryIdentifier == "" {
		alert.PrimaryIdentifier = NewIdentifier("alert")
	}

	_, err := s.Collection.InsertOne(ctx, alert)

	return err
}

func (s *MongoAlertStore) ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) (*ctdf.Alert, error) {
	var alert *ctdf.Alert
	err := s.Collection.FindOneAndUpdate(ctx,
		bson.M{"primaryidentifier": alertID},
		bson.M{"$set": bson.M{"resolved": true, "resolvedat": resolvedAt}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&alert)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ctdf.NewNotFoundError("alert", alertID)
	} else if err != nil {
		return nil, err
	}

	return alert, nil
}

func (s *MongoAlertStore) ListAlerts(ctx context.Context, vehicleID string) ([]*ctdf.Alert, error) {
	return findAll[ctdf.Alert](ctx, s.Collection, vehicleFilter(vehicleID), newestFirst())
}

type MongoLostItemStore struct {
	Collection *mongo.Collection
}

func (s *MongoLostItemStore) CreateLostItem(ctx context.Context, item *ctdf.LostItem) error {
	if item.PrimaryIdentifier == "" {
		item.PrimaryIdentifier = NewIdentifier("lostitem")
	}

	_, err := s.Collection.InsertOne(ctx, item)

	return err
}

func (s *MongoLostItemStore) DeleteLostItem(ctx context.Context, itemID string) error {
	result, err := s.Collection.DeleteOne(ctx, bson.M{"primaryidentifier": itemID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ctdf.NewNotFoundError("lost item", itemID)
	}

	return nil
}

func (s *MongoLostItemStore) ListLostItems(ctx context.Context, vehicleID string) ([]*ctdf.LostItem, error) {
	return findAll[ctdf.LostItem](ctx, s.Collection, vehicleFilter(vehicleID), newestFirst())
}

type MongoPushTargetStore struct {
	Collection *mongo.Collection
}

func (s *MongoPushTargetStore) SavePushTarget(ctx context.Context, target *ctdf.UserPushNotificationTarget) error {
	_, err := s.Collection.UpdateOne(ctx,
		bson.M{"userid": target.UserID, "pushnotificationtoken": target.PushNotificationToken},
		bson.M{"$set": target},
		options.Update().SetUpsert(true),
	)

	return err
}

func (s *MongoPushTargetStore) GetPushTargets(ctx context.Context, userID string) ([]*ctdf.UserPushNotificationTarget, error) {
	return findAll[ctdf.UserPushNotificationTarget](ctx, s.Collection, bson.M{"userid": userID}, options.Find())
}

func findAll[T any](ctx context.Context, collection *mongo.Collection, filter bson.M, findOptions *options.FindOptions) ([]*T, error) {
	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []*T{}
	for cursor.Next(ctx) {
		var record *T
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, cursor.Err()
}
