package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/pkg/database"
)

// ClientRepository manages persistence for client records.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs a ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

var clientSearchColumns = []string{"first_name", "last_name", "phone_number", "email"}

const clientColumns = "id, first_name, last_name, date_of_birth, gender, phone_number, email, address, registration_date"

// List returns clients in registration order. A non-empty search term matches
// first name, last name, phone number or email case-insensitively.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	base := "FROM clients"
	var args []interface{}
	if filter.Search != "" {
		matches := make([]string, 0, len(clientSearchColumns))
		for _, column := range clientSearchColumns {
			matches = append(matches, database.Lower(r.db, column)+` LIKE ? ESCAPE '\'`)
		}
		base += " WHERE (" + strings.Join(matches, " OR ") + ")"
		pattern := containsPattern(filter.Search)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY registration_date ASC, id ASC", clientColumns, base) + pageClause(filter.Page, filter.PageSize)

	clients := []models.Client{}
	if err := r.db.SelectContext(ctx, &clients, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) "+base), args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return clients, total, nil
}

// FindByID fetches a client by ID.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	query := r.db.Rebind("SELECT " + clientColumns + " FROM clients WHERE id = ?")
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// Create inserts a new client record.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.RegistrationDate.IsZero() {
		client.RegistrationDate = time.Now().UTC()
	}
	const query = `INSERT INTO clients (id, first_name, last_name, date_of_birth, gender, phone_number, email, address, registration_date)
        VALUES (:id, :first_name, :last_name, :date_of_birth, :gender, :phone_number, :email, :address, :registration_date)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// Update modifies an existing client. The registration date is never changed.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	const query = `UPDATE clients SET first_name = :first_name, last_name = :last_name, date_of_birth = :date_of_birth, gender = :gender,
        phone_number = :phone_number, email = :email, address = :address WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, client)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return requireAffected(res, "update client")
}

// Delete removes a client together with its enrollments. It returns the number of enrollments removed.
func (r *ClientRepository) Delete(ctx context.Context, id string) (int64, error) {
	return deleteWithEnrollments(ctx, r.db, "clients", "client_id", id)
}
