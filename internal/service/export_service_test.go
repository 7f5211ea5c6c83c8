package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

func TestExportServiceCSV(t *testing.T) {
	f := newMonitorFixture(t, loaderStub{ds: twoItemDataset()})
	view, err := f.svc.Open(context.Background(), testScope)
	require.NoError(t, err)
	exports := NewExportService(f.svc, nil, nil, nil)

	res, err := exports.Export(view.ID, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.True(t, strings.HasSuffix(res.Filename, ".csv"))

	lines := strings.Split(string(res.Data), "\n")
	assert.Equal(t, "task,optional,weight,class average,your result,self estimation,included", lines[0])
	assert.Equal(t, "Exam,,67%,3,2,3,x", lines[1])
	assert.Equal(t, "Project,,33%,,,4,x", lines[2])
	assert.Contains(t, string(res.Data), "your current grade,2")
}

func TestExportServiceHidesAverageColumn(t *testing.T) {
	ds := twoItemDataset()
	ds.ShowAverage = false
	f := newMonitorFixture(t, loaderStub{ds: ds})
	view, err := f.svc.Open(context.Background(), testScope)
	require.NoError(t, err)

	snapshot, bundle, err := f.svc.Snapshot(view.ID)
	require.NoError(t, err)
	table := BuildExportTable(snapshot, bundle)
	assert.NotContains(t, table.Headers, "class average")
	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Headers))
	}
}

func TestExportServicePDFAndErrors(t *testing.T) {
	f := newMonitorFixture(t, loaderStub{ds: twoItemDataset()})
	view, err := f.svc.Open(context.Background(), testScope)
	require.NoError(t, err)
	exports := NewExportService(f.svc, nil, nil, nil)

	res, err := exports.Export(view.ID, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Data), "%PDF"))

	_, err = exports.Export(view.ID, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = exports.Export("missing", "csv")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
