package events

import "github.com/nieko-nera/core/internal/domain"

// ToActivity maps the wire payload onto the canonical activity record.
func (e ActivityProcessed) ToActivity() domain.Activity {
	return domain.Activity{
		ID:             e.ActivityID,
		UserID:         e.UserID,
		Name:           e.Name,
		Description:    e.Description,
		SportType:      e.SportType,
		Gear:           e.Gear,
		Commute:        e.Commute,
		Trainer:        e.Trainer,
		Distance:       e.DistanceKm,
		ElevationGain:  e.ElevationGainM,
		SpeedAvg:       e.SpeedAvgKmh,
		SpeedMax:       e.SpeedMaxKmh,
		PaceAvg:        e.PaceAvgSec,
		PaceMax:        e.PaceMaxSec,
		WattsAvg:       e.WattsAvg,
		WattsMax:       e.WattsMax,
		HeartrateAvg:   e.HeartrateAvg,
		HeartrateMax:   e.HeartrateMax,
		CadenceAvg:     e.CadenceAvg,
		Calories:       e.Calories,
		MovingTime:     e.MovingTimeSec,
		TotalTime:      e.TotalTimeSec,
		DateStart:      e.DateStart.UTC(),
		DateEnd:        e.DateEnd.UTC(),
		UTCStartOffset: e.UTCStartOffset,
		LocationStart:  e.LocationStart.toCoordinates(),
		LocationEnd:    e.LocationEnd.toCoordinates(),
		Polyline:       e.Polyline,
		NewRecords:     append([]string(nil), e.NewRecords...),
	}
}

func (p *LatLon) toCoordinates() *domain.Coordinates {
	if p == nil {
		return nil
	}
	return &domain.Coordinates{Lat: p.Lat, Lon: p.Lon}
}
