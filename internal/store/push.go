package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/kinkeeper/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushColumns = `id, user_id, household_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.HouseholdID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscribe stores a browser subscription. Re-subscribing the same endpoint
// moves it to the caller and refreshes its keys.
func (s *PushStore) Subscribe(userID, householdID int64, endpoint, p256dh, authKey, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, household_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		     user_id = excluded.user_id,
		     household_id = excluded.household_id,
		     p256dh_key = excluded.p256dh_key,
		     auth_key = excluded.auth_key,
		     device_name = excluded.device_name`,
		userID, householdID, endpoint, p256dh, authKey, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}

	// LastInsertId is not reliable after the conflict branch.
	row := s.db.QueryRow(`SELECT `+pushColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(householdID, userID int64) ([]model.PushSubscription, error) {
	return s.list(
		`SELECT `+pushColumns+` FROM push_subscriptions
		 WHERE household_id = ? AND user_id = ? ORDER BY created_at DESC, id DESC`,
		householdID, userID,
	)
}

// ListRecipients returns the household's subscriptions that do not belong to
// the member with the given email.
func (s *PushStore) ListRecipients(householdID int64, exceptEmail string) ([]model.PushSubscription, error) {
	return s.list(
		`SELECT p.id, p.user_id, p.household_id, p.endpoint, p.p256dh_key, p.auth_key, p.device_name, p.created_at
		 FROM push_subscriptions p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.household_id = ? AND u.email != ?
		 ORDER BY p.id`,
		householdID, exceptEmail,
	)
}

func (s *PushStore) list(query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Delete removes one of the user's subscriptions. It reports whether a row
// was removed.
func (s *PushStore) Delete(householdID, userID, id int64) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM push_subscriptions WHERE id = ? AND household_id = ? AND user_id = ?`,
		id, householdID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}
