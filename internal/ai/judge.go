package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"insiderlens/internal/config"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// Judge runs the model over one event's input snapshot, validates the
// output, persists the immutable run and denormalizes the verdict onto the
// event.
type Judge struct {
	repo            repository.Repository
	gen             Generator
	modelID         string
	promptVersion   int
	temperature     float64
	benchmarkSymbol string
	log             *zap.Logger
}

func NewJudge(repo repository.Repository, gen Generator, modelID string, cfg config.AIConfig, promptVersion int, benchmarkSymbol string, log *zap.Logger) *Judge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Judge{
		repo:            repo,
		gen:             gen,
		modelID:         modelID,
		promptVersion:   promptVersion,
		temperature:     cfg.Temperature,
		benchmarkSymbol: benchmarkSymbol,
		log:             log,
	}
}

// Run judges one event. A rerun whose canonical input hash matches an
// already stored run for the same prompt version is a no-op unless forced.
func (j *Judge) Run(ctx context.Context, key repository.EventKey, force bool) error {
	input, err := j.BuildInput(ctx, key)
	if err != nil {
		return err
	}
	inputsHash, err := canonicalInputHash(input)
	if err != nil {
		return err
	}

	if !force {
		existing, err := j.repo.GetLatestAIOutput(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber)
		if err != nil {
			return err
		}
		if existing != nil && existing.InputsHash == inputsHash && existing.PromptVersion == j.promptVersion {
			j.log.Info("skipping judge run, inputs unchanged",
				zap.String("issuer_cik", key.IssuerCIK),
				zap.String("accession", key.AccessionNumber),
				zap.String("inputs_hash", inputsHash[:12]))
			return nil
		}
	}

	promptVersion := PromptVersionString(j.promptVersion)
	prompt, err := BuildPrompt(input, promptVersion)
	if err != nil {
		return err
	}
	j.log.Info("running judge",
		zap.String("issuer_cik", key.IssuerCIK),
		zap.String("owner_key", key.OwnerKey),
		zap.String("accession", key.AccessionNumber),
		zap.String("inputs_hash", inputsHash[:12]))

	rawText, err := j.gen.GenerateJSON(ctx, prompt, j.temperature)
	if err != nil {
		return err
	}

	output, err := ExtractJSON(rawText)
	if err == nil {
		err = ValidateOutput(output, input)
	}
	if err != nil {
		// One repair attempt. The model sometimes emits prose or near-JSON
		// despite the JSON response MIME type.
		j.log.Warn("judge output invalid, attempting repair", zap.Error(err))
		repairPrompt, perr := BuildRepairPrompt(input, rawText, err.Error())
		if perr != nil {
			return perr
		}
		repairedText, gerr := j.gen.GenerateJSON(ctx, repairPrompt, 0.0)
		if gerr != nil {
			return gerr
		}
		output, err = ExtractJSON(repairedText)
		if err != nil {
			return err
		}
		if err := ValidateOutput(output, input); err != nil {
			return err
		}
	}

	return j.persist(ctx, key, input, output, inputsHash)
}

func (j *Judge) persist(ctx context.Context, key repository.EventKey, input, output map[string]any, inputsHash string) error {
	verdict := ParseVerdict(output)

	// A single stored confidence: the max over both sides.
	var confidence *float64
	if verdict.Buy.Confidence != nil {
		confidence = verdict.Buy.Confidence
	}
	if verdict.Sell.Confidence != nil && (confidence == nil || *verdict.Sell.Confidence > *confidence) {
		confidence = verdict.Sell.Confidence
	}

	generatedAt := time.Now().UTC()
	if s, ok := output["generated_at_utc"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			generatedAt = parsed.UTC()
		}
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return err
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return err
	}

	run := &models.AIOutput{
		IssuerCIK:           key.IssuerCIK,
		OwnerKey:            key.OwnerKey,
		AccessionNumber:     key.AccessionNumber,
		ModelID:             j.modelID,
		PromptVersion:       j.promptVersion,
		InputSchemaVersion:  InputSchemaVersion,
		OutputSchemaVersion: 1,
		InputsHash:          inputsHash,
		BuyRating:           verdict.Buy.Rating,
		SellRating:          verdict.Sell.Rating,
		Confidence:          confidence,
		Input:               datatypes.JSON(inputJSON),
		Output:              datatypes.JSON(outputJSON),
		GeneratedAt:         generatedAt,
	}
	if err := j.repo.InsertAIOutput(ctx, run); err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"ai_buy_rating":     verdict.Buy.Rating,
		"ai_sell_rating":    verdict.Sell.Rating,
		"ai_confidence":     confidence,
		"ai_model_id":       j.modelID,
		"ai_prompt_version": j.promptVersion,
		"ai_generated_at":   generatedAt,
		"ai_computed_at":    now,
	}
	if err := j.repo.UpdateInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, updates); err != nil {
		return err
	}

	primarySide, primary := verdict.Primary()
	j.log.Info("stored judge run",
		zap.String("issuer_cik", key.IssuerCIK),
		zap.String("accession", key.AccessionNumber),
		zap.String("primary_side", primarySide),
		zap.Float64p("primary_rating", primary.Rating),
		zap.Float64p("buy_rating", verdict.Buy.Rating),
		zap.Float64p("sell_rating", verdict.Sell.Rating))
	return nil
}

// canonicalInputHash hashes the snapshot with volatile fields removed, so a
// rerun over unchanged underlying data dedupes instead of spamming runs.
func canonicalInputHash(input map[string]any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	var clone map[string]any
	if err := json.Unmarshal(raw, &clone); err != nil {
		return "", err
	}
	delete(clone, "asof_utc")
	if dq, ok := clone["data_quality"].(map[string]any); ok {
		if _, ok := dq["market_cap_staleness_days"]; ok {
			dq["market_cap_staleness_days"] = nil
		}
	}
	canonical, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
