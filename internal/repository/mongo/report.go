package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

const (
	reportCollection   = "registros_1o1"
	countersCollection = "counters"
)

// Store holds the MongoDB client used for reports
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a MongoDB client and verifies it
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Ping verifies connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// reportDocument keeps the column names of the relational schema
type reportDocument struct {
	ID                 int64     `bson:"_id"`
	NomeTeams          string    `bson:"nome_teams"`
	EmailEmployee      *string   `bson:"email_employee"`
	IDFull             *int64    `bson:"id_full"`
	NomeGestor         *string   `bson:"nome_gestor"`
	EmailGestor        *string   `bson:"email_gestor"`
	Data1o1            time.Time `bson:"data_1o1"`
	Abertura           string    `bson:"abertura"`
	AberturaComentario string    `bson:"abertura_comentario"`
	Conquistas         string    `bson:"conquistas"`
	PrincipaisAssuntos string    `bson:"principais_assuntos"`
	Combinados         string    `bson:"combinados"`
	Datastamp          time.Time `bson:"datastamp"`
	Relatorio          string    `bson:"relatorio"`
}

// ReportRepository implements domain.ReportRepository on MongoDB.
// IDs come from a counter document so they stay integers like the SQL stores.
type ReportRepository struct {
	store *Store
}

// NewReportRepository creates a new report repository
func NewReportRepository(store *Store) *ReportRepository {
	return &ReportRepository{store: store}
}

// Create inserts a report and sets its ID
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}

	doc := reportDocument{
		ID:                 id,
		NomeTeams:          report.DisplayName,
		IDFull:             report.ExternalID,
		NomeGestor:         report.ManagerName,
		EmailGestor:        report.ManagerEmail,
		Data1o1:            report.MeetingDate,
		Abertura:           report.Mood,
		AberturaComentario: report.MoodComment,
		Conquistas:         report.Achievements,
		PrincipaisAssuntos: report.Topics,
		Combinados:         report.Agreements,
		Datastamp:          report.CreatedAt,
		Relatorio:          report.Summary,
	}
	if report.Email != "" {
		email := report.Email
		doc.EmailEmployee = &email
	}

	if _, err := r.store.db.Collection(reportCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	report.ID = id
	return nil
}

func (r *ReportRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.store.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": reportCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate report id: %w", err)
	}
	return counter.Seq, nil
}
