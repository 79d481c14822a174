// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

// Package ver gates sources on reported firmware version. A source is
// compatible when the version it reports is greater than or equal to the
// configured minimum.
package ver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hashicorp/go-version"
)

// Errors returned by the compatibility check.
var (
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrMalformedVersion   = errors.New("malformed version")
)

// Prober reports a source's self-described version, typically from a REST
// probe endpoint.
type Prober interface {
	ProbeVersion(ctx context.Context) (string, error)
}

// CheckCompatibility probes the source and verifies that the reported
// version satisfies minVersion. The reported version is returned either way
// so callers can log it.
func CheckCompatibility(ctx context.Context, p Prober, sourceID, minVersion string) (string, error) {
	// Checks can race shutdown; take the logger from the context while it
	// is still live so a late failure has somewhere to go.
	var logger *zerolog.Logger
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		logger = zerolog.Ctx(ctx)
	}
	logger.Debug().Str("source", sourceID).Str("min_version", minVersion).Msg("check source version compatibility")

	reported, err := p.ProbeVersion(ctx)
	if err != nil {
		logger.Error().Err(err).Str("source", sourceID).Msg("failed to probe source version")
		return "", err
	}
	logger.Debug().Str("source", sourceID).Str("reported_version", reported).Msg("probed source version")

	return reported, checkCompatibility(ctx, sourceID, minVersion, reported)
}

func checkCompatibility(ctx context.Context, sourceID, minVersion, reported string) error {
	verConst, err := buildVersionConstraint(minVersion)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("min_version", minVersion).Msg("failed to build constraint")
		return err
	}

	ver, err := parseVersion(reported)
	if err != nil {
		return err
	}

	if !verConst.Check(ver) {
		zerolog.Ctx(ctx).Error().
			Err(ErrUnsupportedVersion).
			Str("source", sourceID).
			Str("constraint", verConst.String()).
			Str("reported", ver.String()).
			Msg("failed source version check")
		return ErrUnsupportedVersion
	}
	zerolog.Ctx(ctx).Info().Str("source", sourceID).Str("min_version", minVersion).Str("reported_version", reported).Msg("source version check successful")
	return nil
}

// The configured minimum is taken at face value; a min_version of 1.4.2
// really does reject 1.4.1.
func buildVersionConstraint(minVersion string) (version.Constraints, error) {
	ver, err := parseVersion(minVersion)
	if err != nil {
		return nil, err
	}
	return version.NewConstraint(fmt.Sprintf(">= %s", ver.String()))
}

func parseVersion(sver string) (*version.Version, error) {
	ver, err := version.NewVersion(strings.Split(sver, "-")[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, ErrMalformedVersion)
	}
	return ver, nil
}
