// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/retrieval"
)

// AnalysisType names a canned question about a filing.
type AnalysisType string

const (
	RiskFactors          AnalysisType = "risk_factors"
	FinancialPerformance AnalysisType = "financial_performance"
	CompetitivePosition  AnalysisType = "competitive_position"
	RegulatoryCompliance AnalysisType = "regulatory_compliance"
	ManagementDiscussion AnalysisType = "management_discussion"
	MarketRisks          AnalysisType = "market_risks"
	CreditRisks          AnalysisType = "credit_risks"
	OperationalRisks     AnalysisType = "operational_risks"
)

// DefaultAnalysisResults is the number of hits an analysis returns.
const DefaultAnalysisResults = 3

// NoSearchMessage is reported when a request names neither a query nor an analysis type.
const NoSearchMessage = "Document processed. Use 'query' or 'analysis_type' for semantic search."

var queryTemplates = map[AnalysisType]string{
	RiskFactors:          "What are the main risk factors for %s?",
	FinancialPerformance: "What is %s's financial performance and outlook?",
	CompetitivePosition:  "What is %s's competitive position and market share?",
	RegulatoryCompliance: "What regulatory compliance issues does %s face?",
	ManagementDiscussion: "What does %s's management discuss about future plans?",
	MarketRisks:          "What market risks does %s face?",
	CreditRisks:          "What credit risks does %s have?",
	OperationalRisks:     "What operational risks does %s face?",
}

// AnalysisTypes lists the known analysis types.
func AnalysisTypes() []AnalysisType {
	return []AnalysisType{
		RiskFactors, FinancialPerformance, CompetitivePosition, RegulatoryCompliance,
		ManagementDiscussion, MarketRisks, CreditRisks, OperationalRisks,
	}
}

// AnalysisQuery returns the question asked for an analysis type.
// Unknown types ask about risk factors.
func AnalysisQuery(analysisType AnalysisType, symbol string) string {
	template, ok := queryTemplates[analysisType]
	if !ok {
		template = queryTemplates[RiskFactors]
	}
	return fmt.Sprintf(template, symbol)
}

// Request asks for an analysis of one symbol's filing.
type Request struct {
	Symbol        string       `json:"symbol"`
	Query         string       `json:"query,omitempty"`
	AnalysisType  AnalysisType `json:"analysis_type,omitempty"`
	StoreDocument bool         `json:"store_document"`
	K             int          `json:"k_results,omitempty"`
}

// Response reports what an analysis did and found.
type Response struct {
	Symbol            string           `json:"symbol"`
	Timestamp         time.Time        `json:"timestamp"`
	AnalysisType      AnalysisType     `json:"analysis_type,omitempty"`
	Query             string           `json:"query,omitempty"`
	Results           []*core.Hit      `json:"results"`
	DocumentProcessed bool             `json:"document_processed"`
	ChunksCreated     int              `json:"chunks_created"`
	SearchPerformed   bool             `json:"search_performed"`
	Message           string           `json:"message,omitempty"`
	Statistics        *retrieval.Stats `json:"rag_statistics,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Analyzer answers analysis requests against a pipeline's collection.
type Analyzer struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer) error

// WithAnalyzerLogger sets a custom logger.
// Default is slog.Default().
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "analysis")
		return nil
	}
}

// NewAnalyzer creates an analyzer that processes and searches through pipeline.
func NewAnalyzer(pipeline *Pipeline, opts ...AnalyzerOption) (*Analyzer, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	a := &Analyzer{
		pipeline: pipeline,
		logger:   slog.Default().With("component", "analysis"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Analyze optionally processes the symbol's filing, then searches the
// collection for the request's query, or the analysis type's question,
// restricted to the symbol.
//
// A processing failure is recorded in the response and returned. Search
// failures yield no results. Only an invalid request yields a nil response.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Response, error) {
	symbol, err := core.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	k := req.K
	if k < 1 {
		k = DefaultAnalysisResults
	}

	logger := a.logger.With("symbol", symbol)
	logger.Info("Starting analysis", "analysis_type", req.AnalysisType, "store_document", req.StoreDocument)

	resp := &Response{
		Symbol:       symbol,
		Timestamp:    time.Now().UTC(),
		AnalysisType: req.AnalysisType,
		Query:        req.Query,
		Results:      []*core.Hit{},
	}

	if req.StoreDocument {
		result, err := a.pipeline.Process(ctx, symbol)
		if err == nil && strings.TrimSpace(result.Markdown) == "" {
			err = ErrNoContent
		}
		if err != nil {
			logger.Error("error processing filing", "err", err)
			resp.Error = fmt.Sprintf("failed to process document: %v", err)
			return resp, err
		}
		resp.DocumentProcessed = true
		resp.ChunksCreated = result.ChunksCreated
	}

	query := req.Query
	if query == "" && req.AnalysisType != "" {
		query = AnalysisQuery(req.AnalysisType, symbol)
	}

	if query == "" {
		resp.Message = NoSearchMessage
	} else {
		collection, err := a.pipeline.Index().Collection(a.pipeline.Collection())
		if err != nil {
			resp.Error = err.Error()
			return resp, err
		}
		resp.Query = query
		resp.Results = collection.Retrieve(ctx, query, k, map[string]string{core.MetaSymbol: symbol})
		resp.SearchPerformed = true
	}

	stats, err := a.pipeline.Index().Stats(ctx)
	if err != nil {
		logger.Warn("Could not get index statistics", "err", err)
	} else {
		resp.Statistics = stats
	}

	logger.Info("Analysis complete", "results", len(resp.Results))
	return resp, nil
}
