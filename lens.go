// Package lens computes filterable dashboards over a tabular dataset.
//
// Two variants share one pipeline:
//
//	retail   customer shopping data: revenue KPIs, monthly trend, category,
//	         payment, mall, age-group and top-customer breakdowns
//	general  any CSV, XLSX or Parquet file: column classification, preview,
//	         sum/mean/mode KPIs, trends, counts and a correlation heatmap
//
// Usage:
//
//	sess := dashboard.NewSession(dashboard.VariantRetail)
//	if err := sess.LoadFile(ctx, "customer_shopping_data.csv"); err != nil {
//	    return err
//	}
//	report, err := sess.Retail(engine.Filters{
//	    Dimensions: map[string][]string{"category": {"Books"}},
//	})
//
// Every recompute starts from the session's base table, so a filter
// selection never changes what later selections see. All computation is
// local; cmd/lens serves the same reports from the command line and over
// HTTP.
package lens
