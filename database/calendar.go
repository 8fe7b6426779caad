package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jerry-enebeli/claimpay/internal/apierror"
	"github.com/jerry-enebeli/claimpay/model"
)

const claimsCalendar = "claims"

// GetBusinessDate returns the current business date of the claims calendar.
func (d Datasource) GetBusinessDate(ctx context.Context) (time.Time, error) {
	var date time.Time
	err := d.Conn.QueryRowContext(ctx, `
		SELECT business_date FROM claimpay.business_calendar WHERE calendar = $1
	`, claimsCalendar).Scan(&date)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, apierror.NewAPIError(apierror.ErrNotFound, "Business date not found", err)
		}
		return time.Time{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve business date", err)
	}
	return model.DateOnly(date), nil
}
