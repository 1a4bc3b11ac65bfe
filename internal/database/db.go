package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"weatherdesk/internal/metrics"
	"weatherdesk/internal/models"
)

// CoordinateTolerance is the drift in degrees a stored location absorbs before it is rewritten
const CoordinateTolerance = 0.0001

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true&loc=UTC"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec, so we need to split them
	statements := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			country VARCHAR(64) NULL,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
			UNIQUE KEY uq_locations_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS api_requests (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			location_id BIGINT NOT NULL,
			request_time DATETIME(6) NOT NULL,
			endpoint TEXT NOT NULL,
			parameters JSON NULL,
			response_status INT NOT NULL,
			response_data MEDIUMTEXT NULL,
			INDEX idx_api_requests_time (request_time),
			INDEX idx_api_requests_user (user_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS weather_observations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			location_id BIGINT NOT NULL,
			observation_time DATETIME(6) NOT NULL,
			temperature INT NOT NULL,
			clouds INT NOT NULL,
			humidity INT NOT NULL,
			pressure INT NOT NULL,
			wind_speed DOUBLE NOT NULL,
			wind_direction INT NOT NULL,
			weather_description VARCHAR(255) NULL,
			raw_data JSON NULL,
			INDEX idx_observations_location_time (location_id, observation_time)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			location_id BIGINT NOT NULL,
			forecast_time DATETIME(6) NOT NULL,
			predicted_temperature DOUBLE NOT NULL,
			predicted_humidity INT NOT NULL,
			predicted_pressure INT NOT NULL,
			predicted_wind_speed DOUBLE NOT NULL,
			predicted_wind_direction INT NOT NULL,
			predicted_clouds INT NOT NULL,
			generation_method VARCHAR(32) NOT NULL,
			model_used VARCHAR(64) NOT NULL,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_forecasts_location_time (location_id, forecast_time)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (db *DB) recordPoolStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// UpsertLocation returns the single id for name, inserting it on first sight and
// refreshing coordinates or country in place when they drift. A new row is
// detected by RowsAffected == 1, which needs clientFoundRows off in the DSN.
func (db *DB) UpsertLocation(ctx context.Context, name string, lat, lon float64, country string) (int64, error) {
	defer db.recordPoolStats()

	// LAST_INSERT_ID(id) makes an existing row report its own id, so the
	// unique key settles concurrent first sightings without a read-then-write.
	query := `INSERT INTO locations (name, latitude, longitude, country) VALUES (?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, query, name, lat, lon, nullString(country))
	metrics.RecordDBQuery("UPSERT", "locations", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert location %s: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read location id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 1 {
		return id, nil
	}

	var (
		storedLat, storedLon float64
		storedCountry        sql.NullString
	)
	queryStart = time.Now()
	err = db.conn.QueryRowContext(ctx,
		`SELECT latitude, longitude, country FROM locations WHERE id = ?`, id,
	).Scan(&storedLat, &storedLon, &storedCountry)
	metrics.RecordDBQuery("SELECT", "locations", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to load location %d: %w", id, err)
	}

	if !locationDrifted(storedLat, storedLon, storedCountry, lat, lon, country) {
		return id, nil
	}

	queryStart = time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE locations SET latitude = ?, longitude = ?, country = ? WHERE id = ?`,
		lat, lon, nullString(country), id,
	)
	metrics.RecordDBQuery("UPDATE", "locations", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to update location %d: %w", id, err)
	}

	return id, nil
}

func locationDrifted(storedLat, storedLon float64, storedCountry sql.NullString, lat, lon float64, country string) bool {
	if math.Abs(storedLat-lat) > CoordinateTolerance || math.Abs(storedLon-lon) > CoordinateTolerance {
		return true
	}
	return storedCountry != nullString(country)
}

// LogAPIRequest appends one audit row for an outbound call
func (db *DB) LogAPIRequest(ctx context.Context, entry *models.APIRequestLog) error {
	defer db.recordPoolStats()

	params := entry.Parameters
	if len(params) == 0 {
		params = []byte("{}")
	}
	requestTime := entry.RequestTime
	if requestTime.IsZero() {
		requestTime = time.Now().UTC()
	}

	query := `INSERT INTO api_requests (user_id, location_id, request_time, endpoint, parameters, response_status, response_data)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		entry.UserID, entry.LocationID, requestTime, entry.Endpoint, string(params),
		entry.ResponseStatus, nullString(entry.ResponseBody),
	)
	metrics.RecordDBQuery("INSERT", "api_requests", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to log api request to %s: %w", entry.Endpoint, err)
	}
	return nil
}

// StoreObservation appends one observation row
func (db *DB) StoreObservation(ctx context.Context, obs *models.Observation) error {
	defer db.recordPoolStats()

	var raw interface{}
	if len(obs.RawPayload) > 0 {
		raw = string(obs.RawPayload)
	}

	query := `INSERT INTO weather_observations
	          (location_id, observation_time, temperature, clouds, humidity, pressure, wind_speed, wind_direction, weather_description, raw_data)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, query,
		obs.LocationID, obs.ObservationTime, obs.Temperature, obs.Clouds, obs.Humidity, obs.Pressure,
		obs.WindSpeed, obs.WindDirection, nullString(obs.Description), raw,
	)
	metrics.RecordDBQuery("INSERT", "weather_observations", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store observation for location %d: %w", obs.LocationID, err)
	}

	if id, err := res.LastInsertId(); err == nil {
		obs.ID = id
	}
	return nil
}

// GetObservationHistory returns observations for a location since the given time, oldest first
func (db *DB) GetObservationHistory(ctx context.Context, locationID int64, since time.Time) ([]models.HistoryPoint, error) {
	query := `SELECT observation_time, temperature, humidity, wind_speed, wind_direction, pressure, clouds, weather_description
	          FROM weather_observations
	          WHERE location_id = ? AND observation_time >= ?
	          ORDER BY observation_time ASC`
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, locationID, since)
	metrics.RecordDBQuery("SELECT", "weather_observations", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query observation history: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryPoint{}
	for rows.Next() {
		var (
			p    models.HistoryPoint
			desc sql.NullString
		)
		if err := rows.Scan(&p.Time, &p.Temp, &p.Humidity, &p.Wind, &p.WindDir, &p.Pressure, &p.Clouds, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		p.Description = desc.String
		history = append(history, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return history, nil
}

// StoreForecastPoints inserts every point in one transaction. Rows for
// overlapping hours from earlier requests are left in place.
func (db *DB) StoreForecastPoints(ctx context.Context, points []models.ForecastPoint) error {
	if len(points) == 0 {
		return nil
	}
	defer db.recordPoolStats()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecasts
		(location_id, forecast_time, predicted_temperature, predicted_humidity, predicted_pressure,
		 predicted_wind_speed, predicted_wind_direction, predicted_clouds, generation_method, model_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	queryStart := time.Now()
	for _, p := range points {
		_, err = stmt.ExecContext(ctx,
			p.LocationID, p.ForecastTime, p.Temperature, p.Humidity, p.Pressure,
			p.WindSpeed, p.WindDirection, p.Clouds, p.GenerationMethod, p.ModelUsed,
		)
		if err != nil {
			metrics.RecordDBQuery("INSERT", "forecasts", time.Since(queryStart), err)
			return fmt.Errorf("failed to insert forecast for %s: %w", p.ForecastTime.Format(time.RFC3339), err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("INSERT", "forecasts", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// PurgeAPIRequests deletes audit rows older than cutoff and reports how many went
func (db *DB) PurgeAPIRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	defer db.recordPoolStats()

	queryStart := time.Now()
	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_requests WHERE request_time < ?`, cutoff)
	metrics.RecordDBQuery("DELETE", "api_requests", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge api requests: %w", err)
	}

	return res.RowsAffected()
}

// GetAllLocations retrieves all locations from the database
func (db *DB) GetAllLocations(ctx context.Context) ([]models.Location, error) {
	query := `SELECT id, name, latitude, longitude, country, updated_at FROM locations ORDER BY name`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var (
			loc     models.Location
			country sql.NullString
		)
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &country, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		loc.Country = country.String
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

// Ping checks the connection for the health endpoint
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// nullString stores "" as NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
