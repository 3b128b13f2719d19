package influxhelper

import (
	"fmt"
	"strings"
	"time"

	influxdb "github.com/influxdata/influxdb/client/v2"
	"k8s.io/klog"

	"github.com/bcaldwell/ynabsheets/pkg/apierr"
	"github.com/bcaldwell/ynabsheets/pkg/config"
	"github.com/bcaldwell/ynabsheets/pkg/sheets"
)

func CreateInfluxClient(secrets config.InfluxSecrets) (influxdb.Client, error) {
	return influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

// CreateDatabase creates name if it does not exist yet.
func CreateDatabase(influxClient influxdb.Client, name string) error {
	name = strings.Split(name, " ")[0]

	createCommand := fmt.Sprintf("CREATE DATABASE %s", name)

	q := influxdb.NewQuery(createCommand, "", "")
	response, err := influxClient.Query(q)
	if err != nil {
		return fmt.Errorf("failed to create influx database %s: %w", name, err)
	}
	if response.Error() != nil {
		return fmt.Errorf("failed to create influx database %s: %w", name, response.Error())
	}
	return nil
}

// Reporter writes one point per sync run.
type Reporter struct {
	client      influxdb.Client
	database    string
	measurement string
}

func NewReporter(client influxdb.Client, database, measurement string) *Reporter {
	return &Reporter{client: client, database: database, measurement: measurement}
}

func (r *Reporter) Report(month string, result sheets.ReplaceResult, duration time.Duration, runErr error) error {
	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("error creating InfluxDB point batch: %w", err)
	}

	tags := map[string]string{
		"month":  month,
		"status": apierr.Name(runErr),
	}
	fields := map[string]interface{}{
		"rows_written":     result.RowsWritten,
		"rows_deleted":     result.RowsDeleted,
		"formulas_written": result.FormulasWritten,
		"duration_ms":      duration.Milliseconds(),
	}

	pt, err := influxdb.NewPoint(r.measurement, tags, fields, time.Now())
	if err != nil {
		return fmt.Errorf("error adding new point: %w", err)
	}
	bp.AddPoint(pt)

	err = r.client.Write(bp)
	if err != nil {
		return fmt.Errorf("error writing to influx: %w", err)
	}

	klog.Infof("Wrote sync metrics for %s to influx\n", month)
	return nil
}
