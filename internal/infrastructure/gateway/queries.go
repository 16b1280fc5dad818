package gateway

const getStationsQuery = `query GetStations {
  stations {
    id
    title
    stream_url
    rss_feed
    station_metadata_fetches {
      order
      url
      station_metadata_fetch_category {
        slug
      }
    }
  }
}`

const updateStationMetadataMutation = `mutation UpdateStationMetadata(
  $stationId: Int!
  $timestamp: timestamptz!
  $song: songs_obj_rel_insert_input
  $listeners: Int
  $nowPlayingRawData: String
  $error: String
  $isUp: Boolean!
  $latencyMs: Int!
  $uptimeRawData: String
) {
  insert_stations_now_playing_one(
    object: {
      station_id: $stationId
      timestamp: $timestamp
      song: $song
      listeners: $listeners
      raw_data: $nowPlayingRawData
      error: $error
    }
    on_conflict: {
      constraint: stations_now_playing_station_id_timestamp_key
      update_columns: [song_id, listeners, raw_data, error]
    }
  ) {
    id
  }
  insert_stations_uptime_one(
    object: {
      station_id: $stationId
      timestamp: $timestamp
      is_up: $isUp
      latency_ms: $latencyMs
      raw_data: $uptimeRawData
    }
  ) {
    id
  }
}`

const (
	songNameConstraint   = "songs_name_artist_id_key"
	artistNameConstraint = "artists_name_key"
)
