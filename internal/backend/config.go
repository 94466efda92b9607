package backend

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"rewards/internal/config"
	gsheet "rewards/internal/sources/google"
	"rewards/internal/sources/remote"
)

// BackendType names a data source selectable with DATA_BACKEND.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	RemoteBackend BackendType = "remote"
)

// Types lists every backend in the order they are documented.
func Types() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, SheetsBackend, RemoteBackend}
}

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool { return slices.Contains(Types(), bt) }

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Config selects one backend and carries the settings of each. Only the
// section matching Type is read; Location applies to all of them.
type Config struct {
	Type     BackendType
	Location *time.Location

	// MemoryDir holds customers.json and transactions.json.
	MemoryDir string
	// SQLitePath also enables AMQP publishing when AMQP.URL is set.
	SQLitePath string
	AMQP       AMQPConfig
	Sheets     gsheet.Config
	Remote     remote.Config
	// ErrorReporter counts remote failures; it may be nil.
	ErrorReporter remote.ErrorReporter
}

// FromAppConfig maps the environment configuration onto a backend Config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("app config is nil")
	}
	bt := BackendType(app.DataBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", app.DataBackend)
	}
	loc, err := app.Location()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:       bt,
		Location:   loc,
		MemoryDir:  app.DataDir,
		SQLitePath: app.SQLiteDBPath,
		AMQP: AMQPConfig{
			URL:      app.AMQPURL,
			Exchange: app.AMQPExchange,
			Queue:    app.AMQPQueue,
		},
		Sheets: gsheet.Config{
			SpreadsheetID:      app.GoogleSpreadsheetID,
			TransactionsSheet:  app.GoogleSheetName,
			ServiceAccountJSON: app.GoogleServiceAccountJSON,
			ServiceAccountFile: app.GoogleServiceAccountFile,
			OAuthClientJSON:    app.GoogleOAuthClientJSON,
			OAuthClientFile:    app.GoogleOAuthClientFile,
			OAuthTokenFile:     app.GoogleOAuthTokenFile,
			Location:           loc,
		},
		Remote: remote.Config{
			BaseURL:    app.RemoteBaseURL,
			Timeout:    app.RemoteTimeout,
			MaxRetries: app.RemoteMaxRetries,
			Location:   loc,
		},
	}, nil
}

// Validate reports every missing setting of the selected backend at once.
func (c Config) Validate() error {
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Type {
	case MemoryBackend:
	case SQLiteBackend:
		require(c.SQLitePath != "", "sqlite backend needs a database path")
		if c.AMQP.URL != "" {
			require(c.AMQP.Exchange != "" && c.AMQP.Queue != "", "AMQP needs both an exchange and a queue")
		}
	case SheetsBackend:
		s := c.Sheets
		require(s.SpreadsheetID != "", "sheets backend needs a spreadsheet ID")
		require(s.ServiceAccountJSON != "" || s.ServiceAccountFile != "" || s.OAuthTokenFile != "",
			"sheets backend needs service account credentials or an OAuth token file")
	case RemoteBackend:
		require(c.Remote.BaseURL != "", "remote backend needs a base URL")
	default:
		errs = append(errs, fmt.Errorf("invalid backend type: %q", c.Type))
	}
	return errors.Join(errs...)
}
