package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoBookingRepository struct {
	col *mongo.Collection
}

func NewMongoBookingRepository(db *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{col: db.Collection("bookings")}
}

// ConnectMongo opens a client and returns the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRetryWrites(true))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the secondary indexes used by the list queries.
func (r *MongoBookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *MongoBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	now := time.Now().UTC()
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, newBookingDocument(booking)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewValidationError("id", "booking already exists")
		}
		return err
	}
	return nil
}

func (r *MongoBookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError("booking", id)
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *MongoBookingRepository) Update(ctx context.Context, id string, patch BookingPatch) (*domain.Booking, error) {
	set := bson.M{"updated_at": time.Now().UTC().UnixMilli()}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.PaymentStatus != nil {
		set["payment_status"] = string(*patch.PaymentStatus)
	}
	if patch.PaymentIntentID != nil {
		set["payment_intent_id"] = *patch.PaymentIntentID
	}
	if patch.RefundedAmount != nil {
		set["refunded_amount"] = *patch.RefundedAmount
	}

	filter := bson.M{"_id": id, "version": patch.ExpectedVersion}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bookingDocument
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	count, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.NewNotFoundError("booking", id)
	}
	return nil, ErrVersionConflict
}

func (r *MongoBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.find(ctx, bson.M{"user_id": userID}, 0)
}

func (r *MongoBookingRepository) ListByPaymentStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.find(ctx, bson.M{"payment_status": string(status)}, int64(limit))
}

func (r *MongoBookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	return r.find(ctx, filter, int64(limit))
}

// Stats folds the whole collection in one $group stage.
func (r *MongoBookingRepository) Stats(ctx context.Context) (*domain.BookingStats, error) {
	pipeline := mongo.Pipeline{{{Key: "$group", Value: statsGroup()}}}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var doc statsDocument
	if cur.Next(ctx) {
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func statsGroup() bson.D {
	pending := string(domain.BookingStatusPending)
	completed := string(domain.PaymentStatusCompleted)
	return bson.D{
		{Key: "_id", Value: nil},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "pending", Value: sumWhere("status", pending, 1)},
		{Key: "confirmed", Value: sumWhere("status", string(domain.BookingStatusConfirmed), 1)},
		{Key: "cancelled", Value: sumWhere("status", string(domain.BookingStatusCancelled), 1)},
		{Key: "payments_completed", Value: sumWhere("payment_status", completed, 1)},
		{Key: "payments_pending", Value: sumWhere("payment_status", string(domain.PaymentStatusPending), 1)},
		{Key: "payments_failed", Value: sumWhere("payment_status", string(domain.PaymentStatusFailed), 1)},
		{Key: "revenue", Value: sumWhere("payment_status", completed, "$total_price")},
		{Key: "refunded_amount", Value: bson.D{{Key: "$sum", Value: "$refunded_amount"}}},
		{Key: "pending_amount", Value: sumWhere("status", pending, "$total_price")},
	}
}

func sumWhere(field, value string, amount interface{}) bson.D {
	match := bson.D{{Key: "$eq", Value: bson.A{"$" + field, value}}}
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{match, amount, 0}}}}}
}

type statsDocument struct {
	Total             int64   `bson:"total"`
	Pending           int64   `bson:"pending"`
	Confirmed         int64   `bson:"confirmed"`
	Cancelled         int64   `bson:"cancelled"`
	PaymentsCompleted int64   `bson:"payments_completed"`
	PaymentsPending   int64   `bson:"payments_pending"`
	PaymentsFailed    int64   `bson:"payments_failed"`
	Revenue           float64 `bson:"revenue"`
	RefundedAmount    float64 `bson:"refunded_amount"`
	PendingAmount     float64 `bson:"pending_amount"`
}

func (d statsDocument) toDomain() *domain.BookingStats {
	return &domain.BookingStats{
		Total:             d.Total,
		Pending:           d.Pending,
		Confirmed:         d.Confirmed,
		Cancelled:         d.Cancelled,
		PaymentsCompleted: d.PaymentsCompleted,
		PaymentsPending:   d.PaymentsPending,
		PaymentsFailed:    d.PaymentsFailed,
		Revenue:           domain.RoundMajor(d.Revenue),
		RefundedAmount:    domain.RoundMajor(d.RefundedAmount),
		PendingAmount:     domain.RoundMajor(d.PendingAmount),
	}
}

func (r *MongoBookingRepository) find(ctx context.Context, filter bson.M, limit int64) ([]domain.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	bookings := make([]domain.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		bookings = append(bookings, *doc.toDomain())
	}
	return bookings, cur.Err()
}

type bookingDocument struct {
	ID              string  `bson:"_id"`
	UserID          string  `bson:"user_id"`
	Destination     string  `bson:"destination"`
	StartDate       int64   `bson:"start_date"`
	EndDate         int64   `bson:"end_date"`
	RoomType        string  `bson:"room_type"`
	Travelers       int     `bson:"travelers"`
	TotalPrice      float64 `bson:"total_price"`
	Status          string  `bson:"status"`
	PaymentStatus   string  `bson:"payment_status"`
	PaymentIntentID string  `bson:"payment_intent_id"`
	RefundedAmount  float64 `bson:"refunded_amount"`
	Version         int64   `bson:"version"`
	CreatedAt       int64   `bson:"created_at"`
	UpdatedAt       int64   `bson:"updated_at"`
}

func newBookingDocument(b *domain.Booking) bookingDocument {
	return bookingDocument{
		ID:              b.ID,
		UserID:          b.UserID,
		Destination:     b.Destination,
		StartDate:       b.StartDate.UnixMilli(),
		EndDate:         b.EndDate.UnixMilli(),
		RoomType:        string(b.RoomType),
		Travelers:       b.Travelers,
		TotalPrice:      b.TotalPrice,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaymentIntentID: b.PaymentIntentID,
		RefundedAmount:  b.RefundedAmount,
		Version:         b.Version,
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
	}
}

func (d bookingDocument) toDomain() *domain.Booking {
	return &domain.Booking{
		ID:              d.ID,
		UserID:          d.UserID,
		Destination:     d.Destination,
		StartDate:       timestampToTime(d.StartDate),
		EndDate:         timestampToTime(d.EndDate),
		RoomType:        domain.RoomType(d.RoomType),
		Travelers:       d.Travelers,
		TotalPrice:      d.TotalPrice,
		Status:          domain.BookingStatus(d.Status),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		PaymentIntentID: d.PaymentIntentID,
		RefundedAmount:  d.RefundedAmount,
		Version:         d.Version,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ BookingRepository = (*MongoBookingRepository)(nil)
