package pipeline

import (
	"fmt"
	"strings"
	"time"

	"geoshard-pipeline/internal/model"
)

const reportDivider = "=============================================================="

// FormatNotification renders the human-readable outcome message for a
// finished workflow. It is a pure function of its input: the branch is
// decided strictly by the presence of a failure descriptor or an explicit
// FAILED status, never by heuristics over the summary's content.
func FormatNotification(now time.Time, status model.JobStatus, summary *model.Summary, failure *model.FailureDescriptor) model.Notification {
	if failure != nil || status == model.StatusFailed {
		return formatFailureMessage(now, summary, failure)
	}
	return formatSuccessMessage(now, summary)
}

func formatSuccessMessage(now time.Time, summary *model.Summary) model.Notification {
	datasetID := "unknown"
	if summary != nil && summary.DatasetID != "" {
		datasetID = summary.DatasetID
	}

	var b strings.Builder
	b.WriteString(reportDivider + "\n")
	b.WriteString("GEOSHARD PIPELINE - PROCESSING COMPLETION NOTIFICATION\n")
	b.WriteString(reportDivider + "\n\n")
	fmt.Fprintf(&b, "Dataset ID:       %s\n", datasetID)
	fmt.Fprintf(&b, "Status:           %s\n", model.StatusCompleted)
	fmt.Fprintf(&b, "Completion Time:  %s\n\n", now.UTC().Format("2006-01-02 15:04:05 UTC"))

	if summary != nil {
		b.WriteString("PROCESSING SUMMARY\n")
		b.WriteString(reportDivider + "\n")
		fmt.Fprintf(&b, "Point Features:    %d\n", summary.PointCount)
		fmt.Fprintf(&b, "Polygon Features:  %d\n", summary.PolygonCount)
		fmt.Fprintf(&b, "Total Area:        %.6f square units\n", summary.PolygonArea)
		fmt.Fprintf(&b, "Other Features:    %d\n", summary.OtherCount)
		if summary.BBox != nil {
			fmt.Fprintf(&b, "Bounding Box:      [%.6f, %.6f, %.6f, %.6f] (minX, minY, maxX, maxY)\n",
				summary.BBox.MinX, summary.BBox.MinY, summary.BBox.MaxX, summary.BBox.MaxY)
		}
		if summary.PointCentroid != nil {
			fmt.Fprintf(&b, "Point Centroid:    [%.6f, %.6f]\n",
				summary.PointCentroid[0], summary.PointCentroid[1])
		}
		if summary.PointCount == 0 && summary.PolygonCount == 0 && summary.OtherCount == 0 {
			b.WriteString("\nNo geometry was found in the input file.\n")
		}
		if len(summary.Tiles) > 0 {
			b.WriteString("\nSHARD BREAKDOWN\n")
			b.WriteString(reportDivider + "\n")
			fmt.Fprintf(&b, "Total Shards: %d\n", len(summary.Tiles))
			for _, tile := range summary.Tiles {
				fmt.Fprintf(&b, "Shard %d: status=%s points=%d polygons=%d area=%.6f other=%d\n",
					tile.Tile, tile.Status, tile.PointCount, tile.PolygonCount, tile.PolygonAreaSum, tile.OtherCount)
			}
		}
		b.WriteString("\nOUTPUT LOCATION\n")
		b.WriteString(reportDivider + "\n")
		fmt.Fprintf(&b, "Manifest:   %s/manifest.json\n", datasetID)
		fmt.Fprintf(&b, "Job Record: datasetId=%s\n", datasetID)
		fmt.Fprintf(&b, "Status API: /api/v1/status/%s\n", datasetID)
	}

	return model.Notification{
		Subject:   fmt.Sprintf("Geoshard Processing Complete: %s", datasetID),
		Message:   strings.TrimSpace(b.String()),
		DatasetID: datasetID,
		Summary:   summary,
	}
}

func formatFailureMessage(now time.Time, summary *model.Summary, failure *model.FailureDescriptor) model.Notification {
	datasetID := "unknown"
	kind := string(KindInternal)
	cause := "No additional details available"
	if failure != nil {
		if failure.DatasetID != "" {
			datasetID = failure.DatasetID
		}
		if failure.Kind != "" {
			kind = failure.Kind
		}
		if failure.Cause != "" {
			cause = failure.Cause
		}
	} else if summary != nil && summary.DatasetID != "" {
		datasetID = summary.DatasetID
	}

	var b strings.Builder
	b.WriteString(reportDivider + "\n")
	b.WriteString("GEOSHARD PIPELINE - PROCESSING FAILURE NOTIFICATION\n")
	b.WriteString(reportDivider + "\n\n")
	fmt.Fprintf(&b, "Dataset ID:    %s\n", datasetID)
	fmt.Fprintf(&b, "Status:        %s\n", model.StatusFailed)
	fmt.Fprintf(&b, "Failure Time:  %s\n\n", now.UTC().Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("ERROR INFORMATION\n")
	b.WriteString(reportDivider + "\n")
	fmt.Fprintf(&b, "Error Type:    %s\n", kind)
	fmt.Fprintf(&b, "Error Details: %s\n\n", cause)

	b.WriteString("TROUBLESHOOTING\n")
	b.WriteString(reportDivider + "\n")
	b.WriteString("1. Check the service logs for detailed error information\n")
	b.WriteString("2. Verify the input file format and size (max 1 MiB)\n")
	b.WriteString("3. Review the job record via /api/v1/status/{datasetId}\n")
	b.WriteString("4. Re-upload the file to retry processing\n")
	b.WriteString("5. Contact the administrator if the issue persists\n")

	return model.Notification{
		Subject:   fmt.Sprintf("Geoshard Processing Failed: %s", datasetID),
		Message:   strings.TrimSpace(b.String()),
		DatasetID: datasetID,
		Error: &model.FailureDescriptor{
			DatasetID: datasetID,
			Kind:      kind,
			Cause:     cause,
		},
	}
}
