// Package domain models geofences, position fixes, and the failure codes the
// service reports back to its host application.
//
// # Geofences
//
// A geofence is a circular region identified by a caller-assigned string:
//
//	{"identifier": "home", "latitude": 51.441846, "longitude": -2.602087,
//	 "radius": 150, "notifyOnEntry": true, "notifyOnExit": true,
//	 "notifyOnDwell": false, "loiteringDelay": 30000}
//
// Radius is in meters. LoiteringDelay is in milliseconds and only matters when
// notifyOnDwell is set. A geofence with all three notify flags false is
// accepted and stored; it simply never produces an event.
//
// # Transitions
//
// The platform reports three transitions, modelled as the closed [Transition]
// enum: ENTER (crossed into the region), EXIT (crossed out), and DWELL
// (remained inside past the loitering delay). The JSON names match the
// "action" field of published [GeofenceEvent] payloads.
//
// # Error codes
//
// Recognized failures carry a numeric [ErrorCode] that hosts already switch on:
//
//	0   LOCATION_UNKNOWN          catch-all for unrecognized platform errors
//	1   PERMISSION_DENIED         fine/coarse (or background, for geofences) not granted
//	2   NETWORK_ERROR             reserved for host compatibility
//	3   LOCATION_CLIENT_IS_NULL   no platform location service
//	4   LOCATION_DISABLED         device location setting off
//	5   LOCATION_IS_NULL          provider returned no usable fix
//	6   CURRENT_LOCATION_FAILED   provider reported a failure
//	7   LOCATION_SETTINGS_FAILED  settings cannot satisfy a high-accuracy request
//	408 LOCATION_TIMEOUT          no result before the request timeout
//
// Unrecognized platform errors keep their original type name, message, and
// status code in [PlatformError] for diagnostics.
package domain
